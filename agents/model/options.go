/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package model

import (
	"fmt"

	"chainguard.dev/tinygen/agents/executor/retry"
	"chainguard.dev/tinygen/agents/metrics"
)

// Settings are the backend-independent knobs shared by every implementation.
type Settings struct {
	MaxTokens int64
	Retry     retry.Config
	Metrics   *metrics.GenAI
}

// DefaultSettings returns the defaults applied before options.
func DefaultSettings() Settings {
	return Settings{
		MaxTokens: 16384,
		Retry:     retry.Default(),
	}
}

// Option configures Settings.
type Option func(*Settings) error

// WithMaxTokens caps the completion length.
func WithMaxTokens(tokens int64) Option {
	return func(s *Settings) error {
		if tokens <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", tokens)
		}
		s.MaxTokens = tokens
		return nil
	}
}

// WithRetryConfig sets how transient backend errors are retried.
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *Settings) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.Retry = cfg
		return nil
	}
}

// WithMetrics overrides the token usage recorder.
func WithMetrics(m *metrics.GenAI) Option {
	return func(s *Settings) error {
		s.Metrics = m
		return nil
	}
}

// Apply builds Settings from the defaults and opts.
func Apply(opts ...Option) (Settings, error) {
	s := DefaultSettings()
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return s, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if s.Metrics == nil {
		s.Metrics = metrics.NewGenAI(metrics.MeterName)
	}
	return s, nil
}
