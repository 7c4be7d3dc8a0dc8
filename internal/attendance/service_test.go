package attendance

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"faceattend/internal/models"
	"faceattend/internal/testsupport"
)

var testLoc = time.FixedZone("UTC+2", 2*60*60)

func newTestService(t *testing.T) (*Service, *Repository, []models.Student) {
	t.Helper()
	db := testsupport.OpenDB(t)
	students := []models.Student{
		{Name: "Ada", RegistrationNumber: "R1", Encoding: testsupport.Descriptor(0.1)},
		{Name: "Grace", RegistrationNumber: "R2", Encoding: testsupport.Descriptor(0.2)},
	}
	for i := range students {
		if err := db.Gorm.Create(&students[i]).Error; err != nil {
			t.Fatalf("seed student: %v", err)
		}
	}
	repo := NewRepository(db.Gorm)
	return NewService(repo, testLoc, nil), repo, students
}

func TestRecordOncePerDay(t *testing.T) {
	svc, _, students := newTestService(t)
	ctx := context.Background()
	id := students[0].ID
	morning := time.Date(2024, 5, 6, 8, 0, 0, 0, testLoc)

	first, err := svc.Record(ctx, id, morning)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !first.Created {
		t.Fatal("first recognition should create a row")
	}
	if first.Attendance.Day != "2024-05-06" {
		t.Errorf("Day = %q, want 2024-05-06", first.Attendance.Day)
	}

	second, err := svc.Record(ctx, id, morning.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if second.Created {
		t.Error("second recognition on the same day created a row")
	}
	if second.Attendance.ID != first.Attendance.ID {
		t.Errorf("returned row %d, want existing %d", second.Attendance.ID, first.Attendance.ID)
	}

	nextDay, err := svc.Record(ctx, id, morning.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !nextDay.Created {
		t.Error("recognition on the next day should create a row")
	}
}

func TestRecordDayUsesConfiguredZone(t *testing.T) {
	svc, _, students := newTestService(t)
	// 23:30 UTC on the 6th is already the 7th at UTC+2
	at := time.Date(2024, 5, 6, 23, 30, 0, 0, time.UTC)
	res, err := svc.Record(context.Background(), students[0].ID, at)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if res.Attendance.Day != "2024-05-07" {
		t.Errorf("Day = %q, want 2024-05-07", res.Attendance.Day)
	}
}

func TestRecordUnknownStudent(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Record(context.Background(), 4242, time.Now())
	if !errors.Is(err, ErrUnknownStudent) {
		t.Errorf("err = %v, want ErrUnknownStudent", err)
	}
}

func TestRecordConcurrentRecognitionsInsertOnce(t *testing.T) {
	svc, repo, students := newTestService(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 6, 9, 0, 0, 0, testLoc)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Record(ctx, students[1].ID, at); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Record: %v", err)
	}

	rows, err := repo.ListDay(ctx, "2024-05-06")
	if err != nil {
		t.Fatalf("ListDay: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows, want 1", len(rows))
	}
}

func TestInsertDuplicateDay(t *testing.T) {
	_, repo, students := newTestService(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	first := models.Attendance{StudentID: students[0].ID, Timestamp: at, Day: "2024-05-06"}
	if err := repo.Insert(ctx, &first); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	second := models.Attendance{StudentID: students[0].ID, Timestamp: at.Add(time.Hour), Day: "2024-05-06"}
	if err := repo.Insert(ctx, &second); !errors.Is(err, errDuplicate) {
		t.Fatalf("err = %v, want errDuplicate", err)
	}
}

// racingRepo writes a competing row just before the service's own insert.
type racingRepo struct {
	*Repository
	winner models.Attendance
}

func (r *racingRepo) Insert(ctx context.Context, att *models.Attendance) error {
	r.winner = models.Attendance{StudentID: att.StudentID, Timestamp: att.Timestamp.Add(-time.Second), Day: att.Day}
	if err := r.Repository.Insert(ctx, &r.winner); err != nil {
		return err
	}
	return r.Repository.Insert(ctx, att)
}

func TestRecordLosesInsertRace(t *testing.T) {
	_, repo, students := newTestService(t)
	racing := &racingRepo{Repository: repo}
	svc := &Service{repo: racing, loc: testLoc, now: time.Now, logger: zap.NewNop()}

	res, err := svc.Record(context.Background(), students[0].ID, time.Date(2024, 5, 6, 8, 0, 0, 0, testLoc))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if res.Created {
		t.Error("Created = true after losing the race")
	}
	if racing.winner.ID == 0 || res.Attendance.ID != racing.winner.ID {
		t.Errorf("returned row %d, want the competing row %d", res.Attendance.ID, racing.winner.ID)
	}

	rows, err := repo.ListDay(context.Background(), "2024-05-06")
	if err != nil {
		t.Fatalf("ListDay: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("%d rows for the day, want 1", len(rows))
	}
}

func TestRecordAllSkipsUnknownAndRepeats(t *testing.T) {
	svc, _, students := newTestService(t)
	at := time.Date(2024, 5, 6, 9, 0, 0, 0, testLoc)
	res, err := svc.RecordAll(context.Background(), []uint{students[0].ID, 999, students[0].ID, students[1].ID}, at)
	if err != nil {
		t.Fatalf("RecordAll: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("got %d results, want 2", len(res))
	}
	if res[0].Attendance.StudentID != students[0].ID || res[1].Attendance.StudentID != students[1].ID {
		t.Errorf("unexpected order: %+v", res)
	}
}

func TestToday(t *testing.T) {
	svc, _, students := newTestService(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 6, 12, 0, 0, 0, testLoc)
	svc.now = func() time.Time { return now }

	if _, err := svc.Record(ctx, students[0].ID, now.AddDate(0, 0, -1)); err != nil {
		t.Fatalf("Record yesterday: %v", err)
	}
	if _, err := svc.Record(ctx, students[1].ID, now.Add(-time.Hour)); err != nil {
		t.Fatalf("Record today: %v", err)
	}

	rows, err := svc.Today(ctx)
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Student.Name != "Grace" {
		t.Errorf("student = %q, want Grace (preloaded)", rows[0].Student.Name)
	}
}

func TestBetweenIsEndInclusive(t *testing.T) {
	svc, _, students := newTestService(t)
	ctx := context.Background()
	days := []time.Time{
		time.Date(2024, 5, 1, 9, 0, 0, 0, testLoc),
		time.Date(2024, 5, 2, 23, 59, 0, 0, testLoc),
		time.Date(2024, 5, 3, 0, 1, 0, 0, testLoc),
	}
	for _, d := range days {
		if _, err := svc.Record(ctx, students[0].ID, d); err != nil {
			t.Fatalf("Record %v: %v", d, err)
		}
	}

	start, _ := svc.ParseDay("2024-05-01")
	end, _ := svc.ParseDay("2024-05-02")
	rows, err := svc.Between(ctx, start, end)
	if err != nil {
		t.Fatalf("Between: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if !rows[0].Timestamp.Before(rows[1].Timestamp) {
		t.Error("rows not ordered by timestamp")
	}

	if _, err := svc.Between(ctx, end, start); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("reversed range err = %v, want ErrInvalidRange", err)
	}
}

func TestParseDay(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.ParseDay("06/05/2024"); err == nil {
		t.Error("expected error for non ISO date")
	}
	d, err := svc.ParseDay("2024-05-06")
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}
	if d.Location() != testLoc || d.Hour() != 0 {
		t.Errorf("unexpected parsed day %v", d)
	}
}

func TestWriteCSV(t *testing.T) {
	rows := []models.Attendance{
		{
			Student:   models.Student{Name: "Ada, Countess", RegistrationNumber: "R1"},
			Timestamp: time.Date(2024, 5, 6, 6, 30, 0, 0, time.UTC),
		},
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows, testLoc); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "Student Name,Registration Number,Timestamp\n\"Ada, Countess\",R1,2024-05-06 08:30:00\n"
	if buf.String() != want {
		t.Errorf("csv =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestExportFilename(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, testLoc)
	end := time.Date(2024, 5, 31, 0, 0, 0, 0, testLoc)
	got := ExportFilename(start, end)
	if got != "attendance_2024-05-01_to_2024-05-31.csv" {
		t.Errorf("ExportFilename = %q", got)
	}
	if !strings.HasSuffix(got, ".csv") {
		t.Error("missing .csv suffix")
	}
}
