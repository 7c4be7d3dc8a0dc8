package testsupport

import (
	"testing"

	"faceattend/internal/store"
)

// OpenDB returns a migrated in-memory SQLite database closed at test cleanup.
func OpenDB(t testing.TB) *store.DB {
	t.Helper()
	db, err := store.Open("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
