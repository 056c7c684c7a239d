// Package storage keeps a history of analysis runs in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"econlint/internal/models"
)

// Run is one recorded invocation of the analyzer.
type Run struct {
	ID            string
	StartedAt     time.Time
	Root          string
	FilesAnalyzed int
	Warnings      []models.Warning
}

// RunRow is the summary returned by ListRuns.
type RunRow struct {
	ID            string
	StartedAt     time.Time
	Root          string
	FilesAnalyzed int
	Warnings      int
}

// timeLayout is fixed width so started_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB is the run history backed by SQLite.
type DB struct {
	conn *sql.DB
}

// OpenSQLite opens (and creates if missing) a SQLite DB at path and makes
// sure the schema exists.
func OpenSQLite(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	c, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	db := &DB{conn: c}
	if err := db.createSchema(); err != nil {
		c.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) createSchema() error {
	_, err := db.conn.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  id             TEXT PRIMARY KEY,
  started_at     TEXT NOT NULL,   -- UTC, timeLayout
  root           TEXT NOT NULL,
  files_analyzed INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS warnings (
  run_id  TEXT NOT NULL,
  seq     INTEGER NOT NULL,
  code    TEXT NOT NULL,
  message TEXT NOT NULL,
  file    TEXT NOT NULL,
  line    INTEGER NOT NULL,
  pattern TEXT NOT NULL,
  PRIMARY KEY (run_id, seq),
  FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_warnings_code ON warnings(code);
`)
	return err
}

// SaveRun stores run and its warnings, assigning an ID if it has none.
// It returns the run ID.
func (db *DB) SaveRun(run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	ts := run.StartedAt.UTC().Format(timeLayout)

	tx, err := db.conn.Begin()
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO runs (id, started_at, root, files_analyzed) VALUES (?, ?, ?, ?)`,
		run.ID, ts, run.Root, run.FilesAnalyzed,
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if len(run.Warnings) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO warnings (run_id, seq, code, message, file, line, pattern)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return "", err
		}
		defer stmt.Close()
		for i, w := range run.Warnings {
			if _, err := stmt.Exec(run.ID, i, w.Code, w.Message, w.File, w.Line, w.Pattern); err != nil {
				return "", fmt.Errorf("insert warning: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(limit int) ([]RunRow, error) {
	const q = `
		SELECT r.id, r.started_at, r.root, r.files_analyzed,
		       (SELECT COUNT(1) FROM warnings w WHERE w.run_id = r.id)
		  FROM runs r
		 ORDER BY r.started_at DESC, r.id DESC
		 LIMIT ?`
	rows, err := db.conn.Query(q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var rr RunRow
		var startedAt string
		if err := rows.Scan(&rr.ID, &startedAt, &rr.Root, &rr.FilesAnalyzed, &rr.Warnings); err != nil {
			return nil, err
		}
		rr.StartedAt = parseStartedAt(startedAt)
		out = append(out, rr)
	}
	return out, rows.Err()
}

// parseStartedAt also accepts RFC3339Nano rows written by older versions.
func parseStartedAt(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

// LoadWarnings returns the warnings of one run in their recorded order.
// Explanations are not stored and are filled in from the rule code.
func (db *DB) LoadWarnings(runID string) ([]models.Warning, error) {
	rows, err := db.conn.Query(
		`SELECT code, message, file, line, pattern FROM warnings WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Warning, 0)
	for rows.Next() {
		var w models.Warning
		if err := rows.Scan(&w.Code, &w.Message, &w.File, &w.Line, &w.Pattern); err != nil {
			return nil, err
		}
		w.Explanation = models.Explanation(w.Code)
		out = append(out, w)
	}
	return out, rows.Err()
}
