package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/p-shah256/resume-optimizer/pkg/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS artifacts (
	name TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	data BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS optimizations (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	section_count INTEGER NOT NULL,
	fallback_count INTEGER NOT NULL,
	attempts INTEGER NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL,
	original_score REAL NOT NULL,
	optimized_score REAL NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_optimizations_created_at ON optimizations(created_at);
`

const busyRetries = 3

type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a database file with WAL journaling
// and a busy timeout, then applies the schema. ":memory:" is accepted.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Put(ctx context.Context, name, contentType string, data []byte) error {
	return s.exec(ctx, `
INSERT INTO artifacts (name, content_type, size_bytes, data, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
	content_type = excluded.content_type,
	size_bytes = excluded.size_bytes,
	data = excluded.data,
	created_at = excluded.created_at
`, name, contentType, len(data), data, time.Now().UTC())
}

func (s *SQLite) Record(ctx context.Context, rec types.OptimizationRecord) error {
	return s.exec(ctx, `
INSERT INTO optimizations (id, request_id, filename, section_count, fallback_count, attempts,
	status, error, duration_ms, original_score, optimized_score, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, rec.ID, rec.RequestID, rec.Filename, rec.SectionCount, rec.FallbackCount, rec.Attempts,
		rec.Status, rec.Error, rec.DurationMs, rec.OriginalScore, rec.OptimizedScore, rec.CreatedAt.UTC())
}

// Recent returns up to limit history records, newest first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]types.OptimizationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, request_id, filename, section_count, fallback_count, attempts,
	status, error, duration_ms, original_score, optimized_score, created_at
FROM optimizations ORDER BY created_at DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.OptimizationRecord
	for rows.Next() {
		var r types.OptimizationRecord
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Filename, &r.SectionCount, &r.FallbackCount, &r.Attempts,
			&r.Status, &r.Error, &r.DurationMs, &r.OriginalScore, &r.OptimizedScore, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// exec retries statements that hit SQLITE_BUSY with 100/200/300ms backoff.
func (s *SQLite) exec(ctx context.Context, query string, args ...any) error {
	for i := range busyRetries {
		_, err := s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return nil
		}
		if !isBusy(err) || i == busyRetries-1 {
			return err
		}
		t := time.NewTimer(time.Duration(100*(i+1)) * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("sqlite: max retries exceeded")
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
