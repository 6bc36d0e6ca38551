/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package model_test

import (
	"context"
	"errors"
	"testing"

	"chainguard.dev/tinygen/agents/executor/retry"
	"chainguard.dev/tinygen/agents/model"
)

func TestUnconfigured(t *testing.T) {
	cfgErr := &model.ConfigurationError{Model: "gpt-4o-mini", Variable: "OPENAI_API_KEY"}
	m := model.Unconfigured("gpt-4o-mini", cfgErr)

	if got := m.Name(); got != "gpt-4o-mini" {
		t.Errorf("Name() = %q", got)
	}
	if err := model.Err(m); !errors.Is(err, cfgErr) {
		t.Errorf("Err() = %v, wanted %v", err, cfgErr)
	}

	_, err := m.Complete(context.Background(), model.Request{User: "hi"})
	var target *model.ConfigurationError
	if !errors.As(err, &target) {
		t.Fatalf("Complete() error = %v, wanted *ConfigurationError", err)
	}
	if target.Variable != "OPENAI_API_KEY" {
		t.Errorf("Variable = %q", target.Variable)
	}
}

func TestApply(t *testing.T) {
	s, err := model.Apply()
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if s.MaxTokens != model.DefaultSettings().MaxTokens {
		t.Errorf("MaxTokens = %d", s.MaxTokens)
	}
	if s.Metrics == nil {
		t.Error("Metrics was not defaulted")
	}

	if _, err := model.Apply(model.WithMaxTokens(0)); err == nil {
		t.Error("Apply(WithMaxTokens(0)) succeeded")
	}
	if _, err := model.Apply(model.WithRetryConfig(retry.Config{MaxRetries: -1})); err == nil {
		t.Error("Apply(WithRetryConfig(negative)) succeeded")
	}
}
