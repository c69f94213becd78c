package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-shah256/resume-optimizer/pkg/types"
)

type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pool, pings it and makes sure the tables exist.
func ConnectPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 0
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS artifacts (
	name TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	data BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS optimizations (
	id UUID PRIMARY KEY,
	request_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	section_count INT NOT NULL,
	fallback_count INT NOT NULL,
	attempts INT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL,
	original_score DOUBLE PRECISION NOT NULL,
	optimized_score DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_optimizations_created_at ON optimizations(created_at);
`)
	return err
}

func (p *Postgres) Put(ctx context.Context, name, contentType string, data []byte) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO artifacts (name, content_type, size_bytes, data, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO UPDATE SET
	content_type = EXCLUDED.content_type,
	size_bytes = EXCLUDED.size_bytes,
	data = EXCLUDED.data,
	created_at = EXCLUDED.created_at
`, name, contentType, len(data), data, time.Now().UTC())
	return err
}

func (p *Postgres) Record(ctx context.Context, rec types.OptimizationRecord) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO optimizations (id, request_id, filename, section_count, fallback_count, attempts,
	status, error, duration_ms, original_score, optimized_score, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`, rec.ID, rec.RequestID, rec.Filename, rec.SectionCount, rec.FallbackCount, rec.Attempts,
		rec.Status, rec.Error, rec.DurationMs, rec.OriginalScore, rec.OptimizedScore, rec.CreatedAt)
	return err
}

func (p *Postgres) Recent(ctx context.Context, limit int) ([]types.OptimizationRecord, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id::text, request_id, filename, section_count, fallback_count, attempts,
	status, error, duration_ms, original_score, optimized_score, created_at
FROM optimizations ORDER BY created_at DESC LIMIT $1
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

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
