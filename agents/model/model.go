/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package model

import (
	"context"
	"errors"
	"fmt"
)

// Request is one system+user exchange.
type Request struct {
	// Stage labels the protocol step issuing the call in logs and metrics.
	Stage       string
	System      string
	User        string
	Temperature float64
}

// Response carries the trimmed completion text and token usage.
type Response struct {
	Text             string
	PromptTokens     int64
	CompletionTokens int64
}

// Model completes a single request.
type Model interface {
	// Name returns the model identifier sent to the backend.
	Name() string
	// Complete issues one invocation. Transient backend errors are retried
	// inside the call.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ErrEmptyResponse is returned when the backend answers without any candidate.
var ErrEmptyResponse = errors.New("model returned no content")

// ConfigurationError reports a backend that cannot be used because a
// required setting is missing.
type ConfigurationError struct {
	Model    string
	Variable string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not set; model %q is not configured", e.Variable, e.Model)
}

type unconfigured struct {
	name string
	err  error
}

// Unconfigured returns a Model that fails every call with err.
func Unconfigured(name string, err error) Model {
	return &unconfigured{name: name, err: err}
}

func (u *unconfigured) Name() string { return u.name }

func (u *unconfigured) Complete(context.Context, Request) (*Response, error) {
	return nil, u.err
}

// Err returns the configuration error of an Unconfigured model, or nil for
// any usable model.
func Err(m Model) error {
	if u, ok := m.(*unconfigured); ok {
		return u.err
	}
	return nil
}
