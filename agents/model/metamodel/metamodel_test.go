/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metamodel

import (
	"context"
	"errors"
	"testing"

	"chainguard.dev/tinygen/agents/model"
)

func TestProviderFor(t *testing.T) {
	tests := []struct {
		model   string
		want    Provider
		wantErr bool
	}{
		{model: "gpt-4o-mini", want: OpenAI},
		{model: "o3-mini", want: OpenAI},
		{model: "GPT-4.1", want: OpenAI},
		{model: "claude-sonnet-4-5", want: Anthropic},
		{model: "gemini-2.5-pro", want: Google},
		{model: "llama-3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := ProviderFor(tt.model)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ProviderFor(%q) error = %v, wantErr %v", tt.model, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ProviderFor(%q) = %q, wanted %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestNewMissingOpenAIKey(t *testing.T) {
	m, err := New(context.Background(), Config{Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if m.Name() != "gpt-4o-mini" {
		t.Errorf("Name() = %q", m.Name())
	}

	var cfgErr *model.ConfigurationError
	if !errors.As(model.Err(m), &cfgErr) {
		t.Fatalf("model.Err() = %v, wanted ConfigurationError", model.Err(m))
	}
	if cfgErr.Variable != "OPENAI_API_KEY" {
		t.Errorf("Variable = %q, wanted OPENAI_API_KEY", cfgErr.Variable)
	}
}

func TestNewWithOpenAIKey(t *testing.T) {
	m, err := New(context.Background(), Config{
		Model:         "gpt-4o-mini",
		OpenAIAPIKey:  "sk-test",
		OpenAIBaseURL: "http://127.0.0.1:0/v1/",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := model.Err(m); err != nil {
		t.Errorf("model.Err() = %v, wanted nil", err)
	}
}

func TestNewUnsupported(t *testing.T) {
	if _, err := New(context.Background(), Config{Model: "mistral-large"}); err == nil {
		t.Error("New() accepted an unsupported model")
	}
}
