/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudemodel_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"chainguard.dev/tinygen/agents/executor/retry"
	"chainguard.dev/tinygen/agents/model"
	"chainguard.dev/tinygen/agents/model/claudemodel"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const messageBody = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-5",
  "content": [{"type": "text", "text": "NO_CHANGE\n"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 30, "output_tokens": 2}
}`

func newBackend(t *testing.T, handler http.HandlerFunc) model.Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := anthropic.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0),
	)
	m, err := claudemodel.New(client, "claude-sonnet-4-5", model.WithRetryConfig(retry.Config{
		MaxRetries:  1,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  time.Millisecond,
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func TestComplete(t *testing.T) {
	var body map[string]any
	m := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageBody))
	})

	resp, err := m.Complete(context.Background(), model.Request{
		Stage:  "reflect",
		System: "reflect rules",
		User:   "proposed diff",
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Text != "NO_CHANGE" {
		t.Errorf("Text = %q, wanted NO_CHANGE", resp.Text)
	}
	if resp.PromptTokens != 30 || resp.CompletionTokens != 2 {
		t.Errorf("tokens = %d/%d, wanted 30/2", resp.PromptTokens, resp.CompletionTokens)
	}
	if got, ok := body["temperature"].(float64); !ok || got != 0 {
		t.Errorf("temperature = %v, wanted explicit 0", body["temperature"])
	}
	if _, ok := body["system"]; !ok {
		t.Error("system instructions were not sent")
	}
}

func TestCompleteRetriesOverloaded(t *testing.T) {
	var calls atomic.Int32
	m := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(529)
			_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "overloaded_error", "message": "Overloaded"}}`))
			return
		}
		_, _ = w.Write([]byte(messageBody))
	})

	if _, err := m.Complete(context.Background(), model.Request{Stage: "generate"}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, wanted 2", n)
	}
}

func TestNewRejectsNonClaudeModel(t *testing.T) {
	if _, err := claudemodel.New(anthropic.NewClient(option.WithAPIKey("k")), "gpt-4o"); err == nil {
		t.Error("New() accepted a non-Claude model")
	}
}
