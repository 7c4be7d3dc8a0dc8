package attendance

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"faceattend/internal/models"
)

// errDuplicate marks a lost insert race on (student, day).
var errDuplicate = errors.New("attendance already recorded")

// Repository persists attendance rows through gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repo.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// StudentExists reports whether the student id is enrolled.
func (r *Repository) StudentExists(ctx context.Context, studentID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", studentID).Count(&n).Error
	return n > 0, err
}

// ForDay returns the student's row for the given day, or nil when none exists.
func (r *Repository) ForDay(ctx context.Context, studentID uint, day string) (*models.Attendance, error) {
	var att models.Attendance
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND day = ?", studentID, day).
		First(&att).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &att, nil
}

// Insert writes a new row.
func (r *Repository) Insert(ctx context.Context, att *models.Attendance) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(att).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errDuplicate
	}
	return err
}

// ListDay returns the rows recorded on day, with their students, oldest first.
func (r *Repository) ListDay(ctx context.Context, day string) ([]models.Attendance, error) {
	var rows []models.Attendance
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("day = ?", day).
		Order("timestamp ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// ListBetween returns rows with from <= timestamp < to, with their students, oldest first.
func (r *Repository) ListBetween(ctx context.Context, from, to time.Time) ([]models.Attendance, error) {
	var rows []models.Attendance
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("timestamp >= ? AND timestamp < ?", from, to).
		Order("timestamp ASC, id ASC").
		Find(&rows).Error
	return rows, err
}
