package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"faceattend/internal/metrics"
	"faceattend/internal/models"
)

const dayLayout = "2006-01-02"

var (
	// ErrUnknownStudent is returned when recording for an id that is not enrolled.
	ErrUnknownStudent = errors.New("unknown student")
	// ErrInvalidRange is returned when an export range ends before it starts.
	ErrInvalidRange = errors.New("end date before start date")
)

// Result describes the outcome of a Record call.
type Result struct {
	Attendance models.Attendance
	// Created is false when the student already had a row for that day.
	Created bool
}

// repository is the subset of *Repository the service uses.
type repository interface {
	StudentExists(ctx context.Context, studentID uint) (bool, error)
	ForDay(ctx context.Context, studentID uint, day string) (*models.Attendance, error)
	Insert(ctx context.Context, att *models.Attendance) error
	ListDay(ctx context.Context, day string) ([]models.Attendance, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]models.Attendance, error)
}

// Service records attendance once per student per day.
type Service struct {
	repo   repository
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a service that buckets days in loc.
func NewService(repo *Repository, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, loc: loc, now: time.Now, logger: logger}
}

// Location is the zone used for days and exported timestamps.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Day returns the calendar day of t in the service's location.
func (s *Service) Day(t time.Time) string {
	return t.In(s.loc).Format(dayLayout)
}

// Record inserts a row for studentID unless one already exists for the day of at.
func (s *Service) Record(ctx context.Context, studentID uint, at time.Time) (Result, error) {
	if at.IsZero() {
		at = s.now()
	}
	day := s.Day(at)

	existing, err := s.repo.ForDay(ctx, studentID, day)
	if err != nil {
		return Result{}, fmt.Errorf("lookup attendance: %w", err)
	}
	if existing != nil {
		metrics.AttendanceDuplicates.Inc()
		return Result{Attendance: *existing}, nil
	}

	ok, err := s.repo.StudentExists(ctx, studentID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup student: %w", err)
	}
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrUnknownStudent, studentID)
	}

	att := models.Attendance{StudentID: studentID, Timestamp: at.UTC(), Day: day}
	if err := s.repo.Insert(ctx, &att); err != nil {
		if !errors.Is(err, errDuplicate) {
			return Result{}, fmt.Errorf("insert attendance: %w", err)
		}
		// a concurrent recognition won the race
		existing, err := s.repo.ForDay(ctx, studentID, day)
		if err != nil {
			return Result{}, fmt.Errorf("reload attendance after conflict: %w", err)
		}
		if existing == nil {
			return Result{}, errors.New("attendance conflict but no row found")
		}
		metrics.AttendanceDuplicates.Inc()
		return Result{Attendance: *existing}, nil
	}

	metrics.AttendanceRecorded.Inc()
	s.logger.Info("attendance recorded", zap.Uint("student_id", studentID), zap.String("day", day))
	return Result{Attendance: att, Created: true}, nil
}

// RecordAll records each id and returns the results in order. Unknown ids are skipped.
func (s *Service) RecordAll(ctx context.Context, ids []uint, at time.Time) ([]Result, error) {
	out := make([]Result, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		res, err := s.Record(ctx, id, at)
		if errors.Is(err, ErrUnknownStudent) {
			s.logger.Warn("skipping unknown student", zap.Uint("student_id", id))
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Today returns the rows recorded on the current day.
func (s *Service) Today(ctx context.Context) ([]models.Attendance, error) {
	return s.repo.ListDay(ctx, s.Day(s.now()))
}

// ParseDay parses a YYYY-MM-DD date at midnight in the service's location.
func (s *Service) ParseDay(v string) (time.Time, error) {
	t, err := time.ParseInLocation(dayLayout, v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", v)
	}
	return t, nil
}

// Between returns rows from the start of start through the end of end (inclusive dates).
func (s *Service) Between(ctx context.Context, start, end time.Time) ([]models.Attendance, error) {
	from := midnight(start, s.loc)
	to := midnight(end, s.loc).AddDate(0, 0, 1)
	if !to.After(from) {
		return nil, ErrInvalidRange
	}
	return s.repo.ListBetween(ctx, from.UTC(), to.UTC())
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
