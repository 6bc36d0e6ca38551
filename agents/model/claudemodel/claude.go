/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package claudemodel implements model.Model on the Anthropic messages API.
package claudemodel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/tinygen/agents/executor/retry"
	"chainguard.dev/tinygen/agents/model"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
)

type backend struct {
	client   anthropic.Client
	name     string
	settings model.Settings
}

// New returns a Model backed by the named Claude model.
func New(client anthropic.Client, name string, opts ...model.Option) (model.Model, error) {
	if !strings.HasPrefix(name, "claude-") {
		return nil, fmt.Errorf("model %q does not appear to be a Claude model (expected claude-* format)", name)
	}
	settings, err := model.Apply(opts...)
	if err != nil {
		return nil, err
	}
	return &backend{client: client, name: name, settings: settings}, nil
}

func (b *backend) Name() string { return b.name }

func (b *backend) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(b.name),
		MaxTokens:   b.settings.MaxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := retry.Do(ctx, b.settings.Retry, "claude."+req.Stage, isRetryable, func() (*anthropic.Message, error) {
		return b.client.Messages.New(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("claude message: %w", err)
	}
	if msg == nil || len(msg.Content) == 0 {
		return nil, model.ErrEmptyResponse
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	b.settings.Metrics.RecordTokens(ctx, b.name, req.Stage, msg.Usage.InputTokens, msg.Usage.OutputTokens)
	clog.FromContext(ctx).With("model", b.name).
		With("stage", req.Stage).
		With("stop_reason", string(msg.StopReason)).
		With("input_tokens", msg.Usage.InputTokens).
		With("output_tokens", msg.Usage.OutputTokens).
		Info("Model call completed")

	return &model.Response{
		Text:             strings.TrimSpace(text.String()),
		PromptTokens:     msg.Usage.InputTokens,
		CompletionTokens: msg.Usage.OutputTokens,
	}, nil
}

func isRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return retry.TransientStatus(apiErr.StatusCode)
	}
	return false
}
