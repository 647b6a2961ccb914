package audit

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		t.Fatalf("failed to create test table: %v", err)
	}
	return db
}

func TestRecordAndRecent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	log := NewWithDB(db)

	log.Record("clock-1", "display", "tick", true, "")
	log.Record("clock-1", "display", "tick", false, "process exited with status 1")

	entries, err := log.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	// newest first
	if entries[0].Success || entries[0].Message != "process exited with status 1" {
		t.Errorf("entries[0] = %+v, want the failed call first", entries[0])
	}
	if !entries[1].Success || entries[1].Message != "" {
		t.Errorf("entries[1] = %+v, want the successful call with empty message", entries[1])
	}
}

func TestRecent_RespectsLimit(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	log := NewWithDB(db)

	for i := 0; i < 5; i++ {
		log.Record("clock-1", "display", "tick", true, "")
	}

	entries, err := log.Recent(2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}
}

func TestRecord_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	log := NewWithDB(db)

	mock.ExpectExec(`INSERT INTO action_calls`).
		WithArgs("clock-1", "display", "tick", true, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	log.Record("clock-1", "display", "tick", true, "")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRecord_SqlmockWritesMessageOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	log := NewWithDB(db)

	mock.ExpectExec(`INSERT INTO action_calls`).
		WithArgs("clock-1", "display", "tick", false, "boom", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	log.Record("clock-1", "display", "tick", false, "boom")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestOpen_CreatesParentDirectoryAndSchema(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir + "/nested/audit.db")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer log.Close()

	log.Record("clock-1", "display", "tick", true, "")
	entries, err := log.Recent(1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].CalledAt.After(time.Now()) || entries[0].CalledAt.IsZero() {
		t.Errorf("CalledAt = %v, want a recent non-zero timestamp", entries[0].CalledAt)
	}
}
