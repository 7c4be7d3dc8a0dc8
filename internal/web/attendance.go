package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"faceattend/internal/attendance"
	"faceattend/internal/stream"
)

func (s *Server) dashboard(c *gin.Context) {
	rows, err := s.Attendance.Today(c.Request.Context())
	if err != nil {
		s.Logger.Error("list today's attendance failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "could not load attendance")
		return
	}
	s.render(c, http.StatusOK, "dashboard.html", gin.H{
		"Attendances": rows,
		"Day":         s.Attendance.Day(s.now()),
		"Loc":         s.Attendance.Location(),
	})
}

func (s *Server) markAttendance(c *gin.Context) {
	s.render(c, http.StatusOK, "mark_attendance.html", gin.H{"Live": s.Streamer != nil})
}

// processAttendance recognizes every face in an uploaded photo and records
// the matched students. It answers with their names.
func (s *Server) processAttendance(c *gin.Context) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.String(http.StatusBadRequest, "No image file")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUpload))
	if err != nil {
		c.String(http.StatusBadRequest, "No image file")
		return
	}

	ctx := c.Request.Context()
	faces, err := s.Recognizer.Detect(ctx, data)
	if err != nil {
		s.Logger.Error("face detection failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "face recognition unavailable"})
		return
	}

	names := make(map[uint]string)
	var ids []uint
	for _, f := range faces {
		m, ok, err := s.Gallery.Match(ctx, f.Descriptor)
		if err != nil {
			s.Logger.Error("gallery match failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "matching failed"})
			return
		}
		if ok {
			if _, dup := names[m.StudentID]; !dup {
				ids = append(ids, m.StudentID)
			}
			names[m.StudentID] = m.Name
		}
	}

	results, err := s.Attendance.RecordAll(ctx, ids, s.now())
	if err != nil {
		s.Logger.Error("record attendance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record attendance"})
		return
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, names[r.Attendance.StudentID])
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) exportAttendance(c *gin.Context) {
	start, err := s.Attendance.ParseDay(c.PostForm("start_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := s.Attendance.ParseDay(c.PostForm("end_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rows, err := s.Attendance.Between(c.Request.Context(), start, end)
	if errors.Is(err, attendance.ErrInvalidRange) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.Logger.Error("export attendance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+attendance.ExportFilename(start, end)+`"`)
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	if err := attendance.WriteCSV(c.Writer, rows, s.Attendance.Location()); err != nil {
		s.Logger.Error("write csv failed", zap.Error(err))
	}
}

func (s *Server) videoFeed(c *gin.Context) {
	if s.Streamer == nil {
		c.String(http.StatusServiceUnavailable, "camera not configured")
		return
	}
	c.Header("Content-Type", stream.ContentType)
	c.Header("Cache-Control", "no-cache, no-store")
	c.Status(http.StatusOK)
	if err := s.Streamer.Serve(c.Request.Context(), c.Writer, c.Writer.Flush); err != nil {
		s.Logger.Error("video feed ended", zap.Error(err))
	}
}

func (s *Server) apiToday(c *gin.Context) {
	rows, err := s.Attendance.Today(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"day": s.Attendance.Day(s.now()), "attendance": rows})
}
