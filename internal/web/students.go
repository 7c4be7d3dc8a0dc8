package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"faceattend/internal/face"
	"faceattend/internal/models"
	"faceattend/internal/students"
)

func (s *Server) studentManagement(c *gin.Context) {
	query := c.Query("q")
	list, err := s.Students.List(c.Request.Context(), query)
	if err != nil {
		s.Logger.Error("list students failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "could not load students")
		return
	}
	s.render(c, http.StatusOK, "student_management.html", gin.H{"Students": list, "Query": query})
}

func (s *Server) addStudentForm(c *gin.Context) {
	s.render(c, http.StatusOK, "add_student.html", nil)
}

func (s *Server) addStudent(c *gin.Context) {
	in, err := studentInput(c)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid upload")
		return
	}
	_, err = s.Students.Create(c.Request.Context(), in)
	switch {
	case err == nil:
		addFlash(c, "success", "Student added successfully!")
		c.Redirect(http.StatusFound, "/student_management")
		return
	case errors.Is(err, students.ErrNoImage):
		addFlash(c, "danger", "Please upload an image.")
	case errors.Is(err, face.ErrNoFace):
		addFlash(c, "danger", "No face detected in the image. Please try again.")
	case errors.Is(err, students.ErrMissingField):
		addFlash(c, "danger", "Name and registration number are required.")
	case errors.Is(err, students.ErrDuplicate):
		addFlash(c, "danger", "A student with this registration number already exists.")
	default:
		s.Logger.Error("add student failed", zap.Error(err))
		addFlash(c, "danger", "Could not add student. Please try again.")
	}
	s.render(c, http.StatusUnprocessableEntity, "add_student.html", gin.H{"Form": in})
}

func (s *Server) editStudentForm(c *gin.Context) {
	st, ok := s.lookupStudent(c)
	if !ok {
		return
	}
	s.render(c, http.StatusOK, "edit_student.html", gin.H{"Student": st})
}

func (s *Server) editStudent(c *gin.Context) {
	st, ok := s.lookupStudent(c)
	if !ok {
		return
	}
	in, err := studentInput(c)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid upload")
		return
	}
	res, err := s.Students.Update(c.Request.Context(), st.ID, in)
	switch {
	case err == nil:
		if res.EncodingRetained {
			addFlash(c, "warning", "No face detected in the image. Previous image retained.")
		}
		addFlash(c, "success", "Student updated successfully!")
		c.Redirect(http.StatusFound, "/student_management")
		return
	case errors.Is(err, students.ErrNotFound):
		c.String(http.StatusNotFound, "Not Found")
		return
	case errors.Is(err, students.ErrMissingField):
		addFlash(c, "danger", "Name and registration number are required.")
	case errors.Is(err, students.ErrDuplicate):
		addFlash(c, "danger", "A student with this registration number already exists.")
	default:
		s.Logger.Error("update student failed", zap.Uint("id", st.ID), zap.Error(err))
		addFlash(c, "danger", "Could not update student. Please try again.")
	}
	s.render(c, http.StatusUnprocessableEntity, "edit_student.html", gin.H{"Student": st})
}

func (s *Server) deleteStudent(c *gin.Context) {
	st, ok := s.lookupStudent(c)
	if !ok {
		return
	}
	if err := s.Students.Delete(c.Request.Context(), st.ID); err != nil {
		if errors.Is(err, students.ErrNotFound) {
			c.String(http.StatusNotFound, "Not Found")
			return
		}
		s.Logger.Error("delete student failed", zap.Uint("id", st.ID), zap.Error(err))
		c.String(http.StatusInternalServerError, "could not delete student")
		return
	}
	addFlash(c, "success", "Student deleted successfully!")
	c.Redirect(http.StatusFound, "/student_management")
}

func (s *Server) apiStudents(c *gin.Context) {
	list, err := s.Students.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": list})
}

// lookupStudent loads the :id student or answers 404.
func (s *Server) lookupStudent(c *gin.Context) (*models.Student, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.String(http.StatusNotFound, "Not Found")
		return nil, false
	}
	st, err := s.Students.Get(c.Request.Context(), uint(id))
	if errors.Is(err, students.ErrNotFound) {
		c.String(http.StatusNotFound, "Not Found")
		return nil, false
	}
	if err != nil {
		s.Logger.Error("load student failed", zap.Uint64("id", id), zap.Error(err))
		c.String(http.StatusInternalServerError, "could not load student")
		return nil, false
	}
	return st, true
}

// studentInput reads the add/edit form. A missing image is not an error here.
func studentInput(c *gin.Context) (students.Input, error) {
	in := students.Input{
		Name:               c.PostForm("name"),
		RegistrationNumber: c.PostForm("registration_number"),
	}
	file, _, err := c.Request.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return in, nil
	}
	if err != nil {
		return in, err
	}
	defer file.Close()
	in.Image, err = io.ReadAll(io.LimitReader(file, maxUpload))
	return in, err
}
