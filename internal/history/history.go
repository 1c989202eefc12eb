// Package history provides a SQLite-backed record of answered questions.
// Every successful /ask is persisted with its answer, source count, and
// latency so operators can review what the service has been asked and how
// it responded across restarts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Record is one answered question.
type Record struct {
	// ID is the auto-assigned row identifier.
	ID int64 `json:"id"`
	// Question is the question as asked.
	Question string `json:"question"`
	// Answer is the answer returned, including the fixed fallback strings.
	Answer string `json:"answer"`
	// SourceCount is how many sources backed the answer.
	SourceCount int `json:"source_count"`
	// LatencyMs is the end-to-end answering latency.
	LatencyMs int64 `json:"latency_ms"`
	// CreatedAt is when the record was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// Store persists and retrieves answered questions. Implementations must be
// safe for concurrent use.
type Store interface {
	// Append persists one answered question.
	Append(ctx context.Context, rec Record) error
	// Recent returns the most recent n records, newest-first.
	// If fewer than n records exist, all are returned.
	Recent(ctx context.Context, n int) ([]Record, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database.
// It resolves to ~/.minirag/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".minirag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("history: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS asks (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    question     TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    source_count INTEGER NOT NULL,
    latency_ms   INTEGER NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_asks_created
    ON asks (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Append persists one answered question. CreatedAt is assigned here.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	const q = `INSERT INTO asks (question, answer, source_count, latency_ms, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, rec.Question, rec.Answer, rec.SourceCount, rec.LatencyMs, time.Now().Unix()); err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n records, newest-first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Record, error) {
	const q = `
SELECT id, question, answer, source_count, latency_ms, created_at
FROM   asks
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var r Record
		var ts int64
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &r.SourceCount, &r.LatencyMs, &ts); err != nil {
			return nil, fmt.Errorf("history: recent scan: %w", err)
		}
		r.CreatedAt = time.Unix(ts, 0)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent rows: %w", err)
	}
	return recs, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	return nil
}
