/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openaimodel implements model.Model on the OpenAI chat completions
// API. Any OpenAI-compatible endpoint works through option.WithBaseURL.
package openaimodel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/tinygen/agents/executor/retry"
	"chainguard.dev/tinygen/agents/model"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
)

type backend struct {
	client   openai.Client
	name     string
	settings model.Settings
}

// New returns a Model that sends every request to the named chat model.
func New(client openai.Client, name string, opts ...model.Option) (model.Model, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("model name cannot be empty")
	}
	settings, err := model.Apply(opts...)
	if err != nil {
		return nil, err
	}
	return &backend{client: client, name: name, settings: settings}, nil
}

func (b *backend) Name() string { return b.name }

func (b *backend) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.name),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		MaxCompletionTokens: openai.Int(b.settings.MaxTokens),
	}
	// Reasoning models only accept their default temperature.
	if !reasoning(b.name) {
		params.Temperature = openai.Float(req.Temperature)
	}

	completion, err := retry.Do(ctx, b.settings.Retry, "openai."+req.Stage, isRetryable, func() (*openai.ChatCompletion, error) {
		return b.client.Chat.Completions.New(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return nil, model.ErrEmptyResponse
	}

	b.settings.Metrics.RecordTokens(ctx, b.name, req.Stage, completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
	clog.FromContext(ctx).With("model", b.name).
		With("stage", req.Stage).
		With("prompt_tokens", completion.Usage.PromptTokens).
		With("completion_tokens", completion.Usage.CompletionTokens).
		Info("Model call completed")

	return &model.Response{
		Text:             strings.TrimSpace(completion.Choices[0].Message.Content),
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}, nil
}

func reasoning(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range []string{"o1", "o3", "o4"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return retry.TransientStatus(apiErr.StatusCode)
	}
	return false
}
