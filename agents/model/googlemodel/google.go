/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package googlemodel implements model.Model on Gemini, through either the
// Gemini API or Vertex AI depending on how the genai client was built.
package googlemodel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/tinygen/agents/executor/retry"
	"chainguard.dev/tinygen/agents/model"
	"github.com/chainguard-dev/clog"
	"google.golang.org/genai"
)

type backend struct {
	client   *genai.Client
	name     string
	settings model.Settings
}

// New returns a Model backed by the named Gemini model.
func New(client *genai.Client, name string, opts ...model.Option) (model.Model, error) {
	if client == nil {
		return nil, errors.New("genai client cannot be nil")
	}
	if !strings.HasPrefix(name, "gemini-") {
		return nil, fmt.Errorf("model %q does not appear to be a Gemini model (expected gemini-* format)", name)
	}
	settings, err := model.Apply(opts...)
	if err != nil {
		return nil, err
	}
	return &backend{client: client, name: name, settings: settings}, nil
}

func (b *backend) Name() string { return b.name }

func (b *backend) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(b.settings.MaxTokens),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	resp, err := retry.Do(ctx, b.settings.Retry, "gemini."+req.Stage, isRetryable, func() (*genai.GenerateContentResponse, error) {
		return b.client.Models.GenerateContent(ctx, b.name, genai.Text(req.User), config)
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, model.ErrEmptyResponse
	}

	var promptTokens, completionTokens int64
	if usage := resp.UsageMetadata; usage != nil {
		promptTokens = int64(usage.PromptTokenCount)
		completionTokens = int64(usage.CandidatesTokenCount)
	}
	b.settings.Metrics.RecordTokens(ctx, b.name, req.Stage, promptTokens, completionTokens)
	clog.FromContext(ctx).With("model", b.name).
		With("stage", req.Stage).
		With("finish_reason", string(resp.Candidates[0].FinishReason)).
		With("prompt_tokens", promptTokens).
		With("completion_tokens", completionTokens).
		Info("Model call completed")

	return &model.Response{
		Text:             strings.TrimSpace(resp.Text()),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}, nil
}

// isRetryable matches on the error text because the genai client reports
// Gemini API and Vertex AI failures with different error types.
func isRetryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retry.TransientStatus(apiErr.Code)
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Resource exhausted") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "Overloaded") ||
		strings.Contains(errStr, "quota exceeded") ||
		strings.Contains(errStr, "Internal error")
}

func ptr[T any](v T) *T {
	return &v
}
