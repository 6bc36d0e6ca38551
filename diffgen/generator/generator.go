/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package generator

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"chainguard.dev/tinygen/agents/model"
	"chainguard.dev/tinygen/diffgen/corpus"
	"chainguard.dev/tinygen/diffgen/unidiff"
	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// DefaultReflectLimit caps how many characters of the draft are sent for review.
const DefaultReflectLimit = 250_000

const tracerName = "chainguard.ai.tinygen.generator"

// GenerationError reports a draft call that failed.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating diff with %s: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Result is the outcome of a successful generation.
type Result struct {
	Diff string
	// Source is the candidate that became final: Primary or Reflected.
	Source unidiff.Stage
	// Files is the number of files whose contents were sent to the model.
	Files int
}

// Generator runs the draft and review protocol against one model.
type Generator struct {
	model        model.Model
	bounds       corpus.Bounds
	reflectLimit int
}

// Option configures a Generator.
type Option func(*Generator) error

// WithBounds sets the corpus collection bounds.
func WithBounds(b corpus.Bounds) Option {
	return func(g *Generator) error {
		g.bounds = b
		return nil
	}
}

// WithReflectLimit caps the draft sent for review, in characters.
func WithReflectLimit(n int) Option {
	return func(g *Generator) error {
		if n <= 0 {
			return fmt.Errorf("reflect limit must be positive, got %d", n)
		}
		g.reflectLimit = n
		return nil
	}
}

// New constructs a Generator.
func New(m model.Model, opts ...Option) (*Generator, error) {
	if m == nil {
		return nil, errors.New("model cannot be nil")
	}
	g := &Generator{
		model:        m,
		bounds:       corpus.DefaultBounds(),
		reflectLimit: DefaultReflectLimit,
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return g, nil
}

// Model returns the identifier of the backing model.
func (g *Generator) Model() string { return g.model.Name() }

// Generate collects the repository at repoPath and produces a diff for goal.
func (g *Generator) Generate(ctx context.Context, repoPath, goal string) (*Result, error) {
	if err := model.Err(g.model); err != nil {
		return nil, err
	}

	snap, err := corpus.Collect(ctx, repoPath, g.bounds)
	if err != nil {
		return nil, fmt.Errorf("collecting files: %w", err)
	}

	primary, err := g.draft(ctx, goal, snap)
	if err != nil {
		return nil, err
	}
	answer := g.reflect(ctx, goal, snap, primary)

	diff, source := decide(primary, answer)
	clog.FromContext(ctx).With("source", string(source)).
		With("valid", unidiff.Validate(diff)).
		Info("Selected final diff")
	return &Result{Diff: diff, Source: source, Files: len(snap.Files)}, nil
}

func (g *Generator) draft(ctx context.Context, goal string, snap *corpus.Snapshot) (string, error) {
	ctx, span := startSpan(ctx, "tinygen.generate", g.model.Name())
	defer span.End()

	user, err := renderGenerate(goal, snap)
	if err != nil {
		return "", fmt.Errorf("rendering generate prompt: %w", err)
	}
	resp, err := g.model.Complete(ctx, model.Request{
		Stage:  string(unidiff.Primary),
		System: generateSystem,
		User:   user,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		var cfgErr *model.ConfigurationError
		if errors.As(err, &cfgErr) {
			return "", err
		}
		return "", &GenerationError{Model: g.model.Name(), Err: err}
	}
	recordUsage(span, resp)
	return unidiff.Extract(resp.Text), nil
}

// reflect returns the raw review answer, or "" when the call fails.
func (g *Generator) reflect(ctx context.Context, goal string, snap *corpus.Snapshot, primary string) string {
	ctx, span := startSpan(ctx, "tinygen.reflect", g.model.Name())
	defer span.End()

	primary = clip(primary, g.reflectLimit)
	user, err := renderReflect(goal, snap, primary)
	if err != nil {
		clog.FromContext(ctx).Warnf("Skipping reflection, prompt failed to render: %v", err)
		return ""
	}
	resp, err := g.model.Complete(ctx, model.Request{
		Stage:  string(unidiff.Reflected),
		System: reflectSystem,
		User:   user,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		clog.FromContext(ctx).Warnf("Reflection failed, keeping the draft: %v", err)
		return ""
	}
	recordUsage(span, resp)
	return resp.Text
}

func decide(primary, answer string) (string, unidiff.Stage) {
	if unidiff.IsNoChange(answer) {
		return primary, unidiff.Primary
	}
	revised := unidiff.Extract(answer)
	switch {
	case unidiff.Validate(revised):
		return revised, unidiff.Reflected
	case unidiff.Validate(primary):
		return primary, unidiff.Primary
	case revised != "":
		return revised, unidiff.Reflected
	default:
		return primary, unidiff.Primary
	}
}

// clip cuts s to at most n runes.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func startSpan(ctx context.Context, name, modelName string) (context.Context, oteltrace.Span) {
	tr := otel.Tracer(tracerName, oteltrace.WithInstrumentationVersion("1.0.0"))
	return tr.Start(ctx, name, oteltrace.WithAttributes(attribute.String("model", modelName)))
}

func recordUsage(span oteltrace.Span, resp *model.Response) {
	span.SetAttributes(
		attribute.Int64("tokens.input", resp.PromptTokens),
		attribute.Int64("tokens.output", resp.CompletionTokens),
	)
}
