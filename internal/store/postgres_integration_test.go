//go:build integration

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"faceattend/internal/face"
	"faceattend/internal/models"
)

func setupPostgres(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "attendance",
			"POSTGRES_PASSWORD": "attendance",
			"POSTGRES_DB":       "attendance",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://attendance:attendance@%s:%s/attendance?sslmode=disable", host, port.Port())
	db, err := Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestPostgresSchema(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	var d face.Descriptor
	for i := range d {
		d[i] = float32(i) / 128
	}
	st := models.Student{Name: "Ada", RegistrationNumber: "R1", Encoding: d}
	if err := db.Gorm.WithContext(ctx).Create(&st).Error; err != nil {
		t.Fatalf("create student: %v", err)
	}

	t.Run("encoding round trip", func(t *testing.T) {
		var got models.Student
		if err := db.Gorm.First(&got, st.ID).Error; err != nil {
			t.Fatalf("load student: %v", err)
		}
		if got.Encoding != d {
			t.Error("encoding changed after round trip")
		}
	})

	t.Run("duplicate registration", func(t *testing.T) {
		dup := models.Student{Name: "Other", RegistrationNumber: "R1", Encoding: d}
		err := db.Gorm.Create(&dup).Error
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			t.Errorf("err = %v, want ErrDuplicatedKey", err)
		}
	})

	t.Run("one attendance per day", func(t *testing.T) {
		now := time.Now().UTC()
		first := models.Attendance{StudentID: st.ID, Timestamp: now, Day: "2024-05-06"}
		if err := db.Gorm.Omit("Student").Create(&first).Error; err != nil {
			t.Fatalf("insert: %v", err)
		}
		second := models.Attendance{StudentID: st.ID, Timestamp: now.Add(time.Hour), Day: "2024-05-06"}
		if err := db.Gorm.Omit("Student").Create(&second).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
			t.Errorf("second insert err = %v, want ErrDuplicatedKey", err)
		}
	})

	t.Run("delete cascades", func(t *testing.T) {
		if err := db.Gorm.Delete(&models.Student{}, st.ID).Error; err != nil {
			t.Fatalf("delete: %v", err)
		}
		var n int64
		db.Gorm.Model(&models.Attendance{}).Where("student_id = ?", st.ID).Count(&n)
		if n != 0 {
			t.Errorf("attendance rows = %d, want 0", n)
		}
	})
}
