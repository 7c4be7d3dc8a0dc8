package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"faceattend/internal/auth"
	"faceattend/internal/models"
	"faceattend/internal/store"
	"faceattend/internal/testsupport"
)

func setupCLIEnv(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "attend.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", dsn)
	t.Setenv("APP_TIMEZONE", "UTC")
	return dsn
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func openTestDB(t *testing.T, dsn string) *store.DB {
	t.Helper()
	db, err := store.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateCommand(t *testing.T) {
	dsn := setupCLIEnv(t)
	out, _, err := runCLI(t, "", "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "up to date") {
		t.Errorf("unexpected output %q", out)
	}
	db := openTestDB(t, dsn)
	if !db.Gorm.Migrator().HasTable(&models.Attendance{}) {
		t.Error("attendance table missing after migrate")
	}
}

func TestCreateAdminCommand(t *testing.T) {
	dsn := setupCLIEnv(t)

	out, _, err := runCLI(t, "", "create-admin", "--username", "root", "--password", "hunter2")
	if err != nil {
		t.Fatalf("create-admin: %v", err)
	}
	if !strings.Contains(out, "Created admin root") {
		t.Errorf("unexpected output %q", out)
	}

	if _, _, err := runCLI(t, "other\n", "create-admin", "-u", "root"); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("duplicate err = %v, want already exists", err)
	}

	if _, _, err := runCLI(t, "s3cret\n", "create-admin", "-u", "second"); err != nil {
		t.Fatalf("create-admin from stdin: %v", err)
	}
	admins := auth.NewAdmins(openTestDB(t, dsn).Gorm)
	if _, err := admins.Authenticate(context.Background(), "second", "s3cret"); err != nil {
		t.Errorf("Authenticate with stdin password: %v", err)
	}
}

func TestCreateAdminRejectsEmptyPassword(t *testing.T) {
	setupCLIEnv(t)
	_, _, err := runCLI(t, "", "create-admin", "-u", "root")
	if err == nil || !strings.Contains(err.Error(), "empty password") {
		t.Errorf("err = %v, want empty password", err)
	}
}

func TestExportCommand(t *testing.T) {
	dsn := setupCLIEnv(t)
	if _, _, err := runCLI(t, "", "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	db := openTestDB(t, dsn)
	st := models.Student{Name: "Ada", RegistrationNumber: "R1", Encoding: testsupport.Descriptor(0.1)}
	if err := db.Gorm.Create(&st).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}
	for _, at := range []time.Time{
		time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 9, 9, 0, 0, 0, time.UTC),
	} {
		att := models.Attendance{StudentID: st.ID, Timestamp: at, Day: at.Format("2006-01-02")}
		if err := db.Gorm.Omit("Student").Create(&att).Error; err != nil {
			t.Fatalf("seed attendance: %v", err)
		}
	}
	db.Close()

	t.Run("stdout", func(t *testing.T) {
		out, _, err := runCLI(t, "", "export", "--from", "2024-05-01", "--to", "2024-05-02")
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		want := "Student Name,Registration Number,Timestamp\nAda,R1,2024-05-01 09:00:00\n"
		if out != want {
			t.Errorf("csv =\n%s\nwant\n%s", out, want)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		_, stderr, err := runCLI(t, "", "export", "--from", "2024-05-01", "--to", "2024-05-31", "-o", path)
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read export: %v", err)
		}
		if n := strings.Count(string(data), "\n"); n != 3 {
			t.Errorf("got %d lines, want 3", n)
		}
		if !strings.Contains(stderr, "Wrote 2 rows") {
			t.Errorf("stderr = %q", stderr)
		}
	})

	t.Run("reversed range", func(t *testing.T) {
		_, _, err := runCLI(t, "", "export", "--from", "2024-05-02", "--to", "2024-05-01")
		if err == nil || !strings.Contains(err.Error(), "end date before start date") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("bad date", func(t *testing.T) {
		_, _, err := runCLI(t, "", "export", "--from", "05/01/2024", "--to", "2024-05-01")
		if err == nil || !strings.Contains(err.Error(), "--from") {
			t.Errorf("err = %v", err)
		}
	})
}

func TestRootWithoutSubcommandPrintsHelp(t *testing.T) {
	out, _, err := runCLI(t, "")
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if !strings.Contains(out, "create-admin") {
		t.Errorf("help output missing subcommands: %q", out)
	}
}
