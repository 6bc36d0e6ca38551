/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package modeltest provides a scripted model.Model for tests.
package modeltest

import (
	"context"
	"fmt"
	"sync"

	"chainguard.dev/tinygen/agents/model"
)

// Reply is one scripted answer. Err takes precedence over Text.
type Reply struct {
	Text string
	Err  error
}

// Fake answers calls from a script in order and records every request.
type Fake struct {
	name string

	mu       sync.Mutex
	script   []Reply
	requests []model.Request
}

var _ model.Model = (*Fake)(nil)

// New returns a Fake that answers with replies in order.
func New(name string, replies ...Reply) *Fake {
	return &Fake{name: name, script: replies}
}

// Name implements model.Model.
func (f *Fake) Name() string { return f.name }

// Complete implements model.Model. Calls beyond the script fail.
func (f *Fake) Complete(_ context.Context, req model.Request) (*model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.requests)
	f.requests = append(f.requests, req)
	if n >= len(f.script) {
		return nil, fmt.Errorf("unexpected model call %d (stage %q)", n+1, req.Stage)
	}
	r := f.script[n]
	if r.Err != nil {
		return nil, r.Err
	}
	return &model.Response{Text: r.Text}, nil
}

// Requests returns a copy of the requests seen so far.
func (f *Fake) Requests() []model.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Request(nil), f.requests...)
}

// Calls returns the number of Complete invocations.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
