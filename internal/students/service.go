package students

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"faceattend/internal/face"
	"faceattend/internal/models"
)

// ErrMissingField is returned when name or registration number is blank.
var ErrMissingField = errors.New("name and registration number are required")

// ErrNoImage is returned when enrollment has no photo.
var ErrNoImage = errors.New("image required")

// PhotoStore keeps enrollment photos under a stable id per student.
type PhotoStore interface {
	Upload(ctx context.Context, data []byte, publicID string) (string, error)
	Delete(ctx context.Context, publicID string) error
}

// Invalidator is notified whenever enrolled encodings change.
type Invalidator interface {
	Invalidate()
}

// Input carries the editable student fields.
type Input struct {
	Name               string
	RegistrationNumber string
	Image              []byte
}

func (in *Input) normalize() error {
	in.Name = strings.Join(strings.Fields(in.Name), " ")
	in.RegistrationNumber = strings.TrimSpace(in.RegistrationNumber)
	if in.Name == "" || in.RegistrationNumber == "" {
		return ErrMissingField
	}
	return nil
}

// UpdateResult reports what an edit changed.
type UpdateResult struct {
	Student *models.Student
	// EncodingRetained is true when a new image was given but contained no face.
	EncodingRetained bool
}

// Service manages the roster and keeps the face gallery in sync.
type Service struct {
	repo       *Repository
	recognizer face.Recognizer
	gallery    Invalidator
	photos     PhotoStore
	logger     *zap.Logger
}

// NewService wires a roster service. photos may be nil.
func NewService(repo *Repository, recognizer face.Recognizer, gallery Invalidator, photos PhotoStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, recognizer: recognizer, gallery: gallery, photos: photos, logger: logger}
}

// List returns students whose name or registration number matches query; empty query returns all.
func (s *Service) List(ctx context.Context, query string) ([]models.Student, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return all, nil
	}
	out := make([]models.Student, 0, len(all))
	for _, st := range all {
		if matches(st.Name, st.RegistrationNumber, query) {
			out = append(out, st)
		}
	}
	return out, nil
}

// Get returns one student.
func (s *Service) Get(ctx context.Context, id uint) (*models.Student, error) {
	return s.repo.Get(ctx, id)
}

// Create enrolls a student. Nothing is stored when the image has no face.
func (s *Service) Create(ctx context.Context, in Input) (*models.Student, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if len(in.Image) == 0 {
		return nil, ErrNoImage
	}
	enc, err := face.Encode(ctx, s.recognizer, in.Image)
	if err != nil {
		return nil, fmt.Errorf("encode face: %w", err)
	}

	st := &models.Student{
		Name:               in.Name,
		RegistrationNumber: in.RegistrationNumber,
		Encoding:           enc,
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}
	s.invalidate()
	if url := s.uploadPhoto(ctx, st.ID, in.Image); url != "" {
		st.PhotoURL = url
		if err := s.repo.Save(ctx, st); err != nil {
			s.logger.Warn("store photo url failed", zap.Uint("student_id", st.ID), zap.Error(err))
		}
	}
	s.logger.Info("student enrolled", zap.Uint("student_id", st.ID), zap.String("registration", st.RegistrationNumber))
	return st, nil
}

// Update edits a student. A new image replaces the encoding only when it contains a face.
func (s *Service) Update(ctx context.Context, id uint, in Input) (UpdateResult, error) {
	if err := in.normalize(); err != nil {
		return UpdateResult{}, err
	}
	st, err := s.repo.Get(ctx, id)
	if err != nil {
		return UpdateResult{}, err
	}
	st.Name = in.Name
	st.RegistrationNumber = in.RegistrationNumber

	res := UpdateResult{Student: st}
	replaced := false
	if len(in.Image) > 0 {
		enc, err := face.Encode(ctx, s.recognizer, in.Image)
		switch {
		case errors.Is(err, face.ErrNoFace):
			res.EncodingRetained = true
		case err != nil:
			return UpdateResult{}, fmt.Errorf("encode face: %w", err)
		default:
			st.Encoding = enc
			replaced = true
		}
	}

	if err := s.repo.Save(ctx, st); err != nil {
		return UpdateResult{}, err
	}
	s.invalidate()

	// the stored photo follows the saved encoding
	if replaced {
		if url := s.uploadPhoto(ctx, st.ID, in.Image); url != "" && url != st.PhotoURL {
			st.PhotoURL = url
			if err := s.repo.Save(ctx, st); err != nil {
				s.logger.Warn("store photo url failed", zap.Uint("student_id", st.ID), zap.Error(err))
			}
		}
	}
	return res, nil
}

// Delete removes a student and its attendance history.
func (s *Service) Delete(ctx context.Context, id uint) error {
	st, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	s.logger.Info("student deleted", zap.Uint("student_id", id))

	if s.photos != nil && st.PhotoURL != "" {
		if err := s.photos.Delete(ctx, photoID(id)); err != nil {
			s.logger.Warn("photo delete failed", zap.Uint("student_id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) invalidate() {
	if s.gallery != nil {
		s.gallery.Invalidate()
	}
}

// uploadPhoto returns "" when no store is configured or the upload failed.
func (s *Service) uploadPhoto(ctx context.Context, id uint, image []byte) string {
	if s.photos == nil {
		return ""
	}
	url, err := s.photos.Upload(ctx, bytes.Clone(image), photoID(id))
	if err != nil {
		s.logger.Warn("photo upload failed", zap.Uint("student_id", id), zap.Error(err))
		return ""
	}
	return url
}

func photoID(id uint) string {
	return "student-" + strconv.FormatUint(uint64(id), 10)
}
