/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package pipeline runs one generation request end to end: workspace,
// clone, generation, run record. Every call to Run writes exactly one
// record and removes its workspace before returning.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chainguard.dev/tinygen/agents/model"
	"chainguard.dev/tinygen/diffgen/generator"
	"chainguard.dev/tinygen/diffgen/runlog"
	"chainguard.dev/tinygen/diffgen/unidiff"
	"chainguard.dev/tinygen/diffgen/workspace"
	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinygen_runs_total",
			Help: "Total number of diff generation requests by outcome",
		},
		[]string{"model", "status", "reason"},
	)

	runLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tinygen_run_duration_seconds",
			Help:    "Time spent cloning and generating a diff",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"model", "status"},
	)

	diffBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tinygen_diff_bytes",
			Help:    "Size of returned diffs",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"model", "source"},
	)
)

// Pipeline wires the per-request steps together. It holds no per-request
// state and is safe for concurrent use.
type Pipeline struct {
	workspaces *workspace.Manager
	generator  *generator.Generator
	logger     *runlog.Logger
}

// New constructs a Pipeline.
func New(workspaces *workspace.Manager, gen *generator.Generator, logger *runlog.Logger) *Pipeline {
	return &Pipeline{workspaces: workspaces, generator: gen, logger: logger}
}

// Run clones repoURL, generates a diff for prompt and records the outcome.
// Clone, configuration and generation failures are returned unchanged.
func (p *Pipeline) Run(ctx context.Context, repoURL, prompt string) (string, error) {
	modelName := p.generator.Model()
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("repo_url", repoURL).With("model", modelName))

	start := time.Now()
	res, err := p.run(ctx, repoURL, prompt)
	latency := time.Since(start)

	rec := runlog.Record{
		RepoURL: repoURL,
		Prompt:  prompt,
		Model:   modelName,
		Latency: latency,
	}
	status := runlog.StatusOK
	if err != nil {
		status = runlog.StatusError
		rec.Error = err.Error()
		runCounter.WithLabelValues(modelName, string(status), reason(err)).Inc()
	} else {
		rec.Diff = res.Diff
		rec.Meta = meta(res)
		runCounter.WithLabelValues(modelName, string(status), "").Inc()
		diffBytes.WithLabelValues(modelName, string(res.Source)).Observe(float64(len(res.Diff)))
	}
	rec.Status = status
	runLatency.WithLabelValues(modelName, string(status)).Observe(latency.Seconds())

	p.logger.Log(ctx, rec)

	if err != nil {
		return "", err
	}
	return res.Diff, nil
}

func (p *Pipeline) run(ctx context.Context, repoURL, prompt string) (*generator.Result, error) {
	ws, err := p.workspaces.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer ws.Close(ctx)

	root, err := ws.Clone(ctx, repoURL)
	if err != nil {
		return nil, err
	}
	res, err := p.generator.Generate(ctx, root, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating diff: %w", err)
	}
	return res, nil
}

func meta(res *generator.Result) map[string]any {
	m := map[string]any{
		"source": string(res.Source),
		"files":  res.Files,
	}
	if s, err := unidiff.Summarize(res.Diff); err == nil {
		m["touched"] = s.Files
		m["added"] = s.Added
		m["removed"] = s.Removed
	}
	return m
}

func reason(err error) string {
	var (
		cloneErr *workspace.CloneError
		cfgErr   *model.ConfigurationError
		genErr   *generator.GenerationError
	)
	switch {
	case errors.As(err, &cloneErr):
		return "clone"
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &genErr):
		return "generation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
