/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package pgsink stores run records in a Postgres table. It works against
// Supabase through the project's Postgres connection string.
package pgsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chainguard.dev/tinygen/diffgen/runlog"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTable matches the table name used by existing deployments.
const DefaultTable = "tinygen_runs"

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Sink inserts one row per record.
type Sink struct {
	db    execer
	table string
}

var _ runlog.Sink = (*Sink)(nil)

// New returns a Sink writing to DefaultTable through pool.
func New(pool *pgxpool.Pool) *Sink {
	return &Sink{db: pool, table: DefaultTable}
}

// Connect opens a pool for databaseURL, checks it is reachable and ensures
// the schema exists.
func Connect(ctx context.Context, databaseURL string) (*Sink, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("create run log pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping run log db: %w", err)
	}
	s := New(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool, nil
}

// EnsureSchema creates the runs table if needed.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("run log sink not initialized")
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
    id UUID PRIMARY KEY,
    repo_url TEXT NOT NULL,
    prompt TEXT NOT NULL,
    status TEXT NOT NULL,
    diff TEXT,
    error TEXT,
    model TEXT NOT NULL DEFAULT '',
    latency_ms BIGINT NOT NULL DEFAULT 0,
    meta JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
		`CREATE INDEX IF NOT EXISTS idx_` + s.table + `_created_at ON ` + s.table + ` (created_at);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring run log schema: %w", err)
		}
	}
	return nil
}

// Record implements runlog.Sink.
func (s *Sink) Record(ctx context.Context, rec runlog.Record) error {
	if s == nil || s.db == nil {
		return errors.New("run log sink not initialized")
	}

	var meta any
	if len(rec.Meta) > 0 {
		b, err := json.Marshal(rec.Meta)
		if err != nil {
			return fmt.Errorf("encoding meta: %w", err)
		}
		meta = b
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO `+s.table+` (
    id, repo_url, prompt, status, diff, error, model, latency_ms, meta, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)
`,
		rec.ID,
		rec.RepoURL,
		rec.Prompt,
		string(rec.Status),
		nullable(rec.Diff),
		nullable(rec.Error),
		rec.Model,
		rec.LatencyMS,
		meta,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", rec.ID, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
