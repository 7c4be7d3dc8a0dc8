package students

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"faceattend/internal/face"
	"faceattend/internal/models"
)

var (
	// ErrNotFound is returned for unknown student ids.
	ErrNotFound = errors.New("student not found")
	// ErrDuplicate is returned when the registration number is already enrolled.
	ErrDuplicate = errors.New("registration number already enrolled")
)

// Repository persists students through gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repo.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns every student ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Student, error) {
	var out []models.Student
	if err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a single student by id.
func (r *Repository) Get(ctx context.Context, id uint) (*models.Student, error) {
	var st models.Student
	if err := r.db.WithContext(ctx).First(&st, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

// Create inserts a student.
func (r *Repository) Create(ctx context.Context, st *models.Student) error {
	return translate(r.db.WithContext(ctx).Create(st).Error)
}

// Save writes every column of an existing student.
func (r *Repository) Save(ctx context.Context, st *models.Student) error {
	return translate(r.db.WithContext(ctx).Save(st).Error)
}

// Delete removes a student and its attendance rows.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", id).Delete(&models.Attendance{}).Error; err != nil {
			return fmt.Errorf("delete attendance: %w", err)
		}
		res := tx.Delete(&models.Student{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// LoadKnown returns every enrolled encoding for the face gallery.
func (r *Repository) LoadKnown(ctx context.Context) ([]face.Known, error) {
	var rows []models.Student
	if err := r.db.WithContext(ctx).Select("id", "name", "encoding").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load encodings: %w", err)
	}
	known := make([]face.Known, 0, len(rows))
	for _, st := range rows {
		known = append(known, face.Known{StudentID: st.ID, Name: st.Name, Descriptor: st.Encoding})
	}
	return known, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
