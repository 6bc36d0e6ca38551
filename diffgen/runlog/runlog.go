/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package runlog records the outcome of every generation request.
//
// Recording is best-effort. A Sink may drop records, and Logger never lets a
// sink failure reach the request that produced the record. Do not use it as
// a reliable audit trail.
package runlog

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
)

// Status is the outcome of a request.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

const (
	// DefaultMaxDiff is the largest diff, in bytes, handed to a sink.
	DefaultMaxDiff = 900_000
	// DefaultTimeout bounds a single Record call.
	DefaultTimeout = 10 * time.Second
)

// Record is one immutable audit entry.
type Record struct {
	ID        string         `json:"id"`
	RepoURL   string         `json:"repo_url"`
	Prompt    string         `json:"prompt"`
	Status    Status         `json:"status"`
	Diff      string         `json:"diff,omitempty"`
	Error     string         `json:"error,omitempty"`
	Model     string         `json:"model"`
	Latency   time.Duration  `json:"-"`
	LatencyMS int64          `json:"latency_ms"`
	CreatedAt time.Time      `json:"created_at"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Sink persists records. Implementations are best-effort: an error means the
// record was probably lost, and callers are expected to log it and move on.
type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

// Record implements Sink.
func (f SinkFunc) Record(ctx context.Context, rec Record) error { return f(ctx, rec) }

type multi []Sink

// Multi writes every record to each sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Record(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes records to the structured log only. It is what a Logger
// falls back to when no store is configured.
type LogSink struct{}

// Record implements Sink.
func (LogSink) Record(ctx context.Context, rec Record) error {
	log := clog.FromContext(ctx).With("run_id", rec.ID).
		With("repo_url", rec.RepoURL).
		With("status", string(rec.Status)).
		With("model", rec.Model).
		With("latency_ms", rec.LatencyMS).
		With("diff_bytes", len(rec.Diff))
	if rec.Status == StatusError {
		log.With("error", rec.Error).Warn("Run failed")
		return nil
	}
	log.Info("Run completed")
	return nil
}

// Logger stamps records and hands them to a Sink.
type Logger struct {
	sink    Sink
	maxDiff int
	timeout time.Duration
	now     func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithMaxDiff truncates diffs longer than n bytes.
func WithMaxDiff(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.maxDiff = n
		}
	}
}

// WithTimeout bounds each Record call.
func WithTimeout(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// NewLogger returns a Logger writing to sink, or to LogSink when sink is nil.
func NewLogger(sink Sink, opts ...Option) *Logger {
	if sink == nil {
		sink = LogSink{}
	}
	l := &Logger{
		sink:    sink,
		maxDiff: DefaultMaxDiff,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log fills in the ID, timestamp and latency fields of rec, truncates the
// diff and records it. It never fails; sink errors go to the log. The write
// is detached from ctx cancellation so an abandoned request is still
// recorded.
func (l *Logger) Log(ctx context.Context, rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now().UTC()
	}
	rec.LatencyMS = rec.Latency.Milliseconds()
	if len(rec.Diff) > l.maxDiff {
		rec.Diff = clip(rec.Diff, l.maxDiff)
		if rec.Meta == nil {
			rec.Meta = map[string]any{}
		}
		rec.Meta["diff_truncated"] = true
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			clog.FromContext(ctx).With("run_id", rec.ID).Errorf("Run log sink panicked: %v", r)
		}
	}()
	if err := l.sink.Record(ctx, rec); err != nil {
		clog.FromContext(ctx).With("run_id", rec.ID).Warnf("Failed to record run: %v", err)
	}
}

func clip(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
