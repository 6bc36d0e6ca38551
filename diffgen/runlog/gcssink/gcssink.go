/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gcssink stores each run record as a JSON object in a Cloud Storage
// bucket, under <prefix>/<yyyy>/<mm>/<dd>/<id>.json.
package gcssink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"chainguard.dev/tinygen/diffgen/runlog"
	"cloud.google.com/go/storage"
)

// DefaultPrefix is the object prefix used when none is given.
const DefaultPrefix = "runs"

type openFunc func(ctx context.Context, name string) io.WriteCloser

// Sink writes one object per record.
type Sink struct {
	prefix string
	open   openFunc
}

var _ runlog.Sink = (*Sink)(nil)

// New returns a Sink writing to bucket. An empty prefix means DefaultPrefix.
func New(client *storage.Client, bucket, prefix string) (*Sink, error) {
	if client == nil {
		return nil, errors.New("storage client cannot be nil")
	}
	if bucket == "" {
		return nil, errors.New("bucket cannot be empty")
	}
	b := client.Bucket(bucket)
	return newSink(prefix, func(ctx context.Context, name string) io.WriteCloser {
		w := b.Object(name).NewWriter(ctx)
		w.ContentType = "application/json"
		return w
	}), nil
}

func newSink(prefix string, open openFunc) *Sink {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Sink{prefix: prefix, open: open}
}

// ObjectName returns where rec is stored.
func (s *Sink) ObjectName(rec runlog.Record) string {
	return path.Join(s.prefix, rec.CreatedAt.UTC().Format("2006/01/02"), rec.ID+".json")
}

// Record implements runlog.Sink.
func (s *Sink) Record(ctx context.Context, rec runlog.Record) error {
	if rec.ID == "" {
		return errors.New("record has no ID")
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", rec.ID, err)
	}

	// Closing a storage writer commits whatever was written; a failed
	// write is abandoned by canceling its context instead.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	name := s.ObjectName(rec)
	w := s.open(ctx, name)
	if _, err := w.Write(body); err != nil {
		cancel()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing %s: %w", name, err)
	}
	return nil
}
