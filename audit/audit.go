// Package audit is a supplemental SQLite action-call log: every successful
// or failed call_action invocation is appended here for later inspection,
// independent of the in-memory registry state it doesn't replace. Grounded
// on db/connection.go's Open (WAL mode, foreign keys, busy timeout
// pragmas) and ai/tracker's UsageTracker (a narrow single-table SQLite
// logger with the same INSERT-then-move-on shape).
package audit

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/neopult/neopult/errors"
	"github.com/neopult/neopult/logger"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS action_calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	plugin_instance TEXT NOT NULL,
	module TEXT NOT NULL,
	action TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	message TEXT,
	called_at DATETIME NOT NULL
)`

// Log appends action-call records to a SQLite database.
type Log struct {
	db *sql.DB
}

// Open opens (creating if necessary) the audit database at path and
// ensures its schema exists.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create audit database directory: %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open audit database at %s", path)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to enable WAL journal mode for %s", path)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to set busy timeout for %s", path)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create action_calls table")
	}

	return &Log{db: db}, nil
}

// NewWithDB wraps an already-open *sql.DB, for tests that drive a
// sqlmock connection or an in-memory database with its own schema setup.
func NewWithDB(db *sql.DB) *Log {
	return &Log{db: db}
}

// Close closes the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends one action-call outcome. Failures to write the audit
// record are logged, not returned — a broken audit log must never be able
// to fail an action call itself.
func (l *Log) Record(pluginInstance, module, action string, success bool, message string) {
	_, err := l.db.Exec(
		`INSERT INTO action_calls (plugin_instance, module, action, success, message, called_at) VALUES (?, ?, ?, ?, ?, ?)`,
		pluginInstance, module, action, success, nullIfEmpty(message), time.Now(),
	)
	if err != nil {
		logger.ScriptingWarnw("failed to write audit record",
			logger.FieldPluginInstance, pluginInstance, "module", module, "action", action, "error", err)
	}
}

// Entry is one row read back from the audit log.
type Entry struct {
	PluginInstance string
	Module         string
	Action         string
	Success        bool
	Message        string
	CalledAt       time.Time
}

// Recent returns the most recent n entries, newest first.
func (l *Log) Recent(n int) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT plugin_instance, module, action, success, COALESCE(message, ''), called_at
		 FROM action_calls ORDER BY called_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query recent audit entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.PluginInstance, &e.Module, &e.Action, &e.Success, &e.Message, &e.CalledAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
