/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openaimodel_test

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
	"chainguard.dev/tinygen/agents/model/openaimodel"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": "  diff --git a/x b/x\n"},
    "finish_reason": "stop"
  }],
  "usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
}`

type chatRequest struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newBackend(t *testing.T, handler http.HandlerFunc) model.Model {
	t.Helper()
	return newNamedBackend(t, "gpt-4o-mini", handler)
}

func newNamedBackend(t *testing.T, name string, handler http.HandlerFunc) model.Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := openai.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0),
	)
	m, err := openaimodel.New(client, name, model.WithRetryConfig(retry.Config{
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  time.Millisecond,
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func TestComplete(t *testing.T) {
	var got chatRequest
	m := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	})

	resp, err := m.Complete(context.Background(), model.Request{
		Stage:  "generate",
		System: "rules",
		User:   "goal",
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if resp.Text != "diff --git a/x b/x" {
		t.Errorf("Text = %q, wanted trimmed completion", resp.Text)
	}
	if resp.PromptTokens != 12 || resp.CompletionTokens != 5 {
		t.Errorf("tokens = %d/%d, wanted 12/5", resp.PromptTokens, resp.CompletionTokens)
	}
	if got.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", got.Model)
	}
	if got.Temperature == nil || *got.Temperature != 0 {
		t.Errorf("temperature = %v, wanted explicit 0", got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "goal" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestCompleteReasoningModelOmitsTemperature(t *testing.T) {
	for _, name := range []string{"o1", "o3-mini", "o4-mini"} {
		t.Run(name, func(t *testing.T) {
			var raw map[string]json.RawMessage
			m := newNamedBackend(t, name, func(w http.ResponseWriter, r *http.Request) {
				if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
					t.Errorf("decoding request: %v", err)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(completionBody))
			})

			if _, err := m.Complete(context.Background(), model.Request{Stage: "generate", User: "goal"}); err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if _, ok := raw["temperature"]; ok {
				t.Errorf("temperature = %s, wanted it omitted for %s", raw["temperature"], name)
			}
		})
	}
}

func TestCompleteRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	m := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit"}}`))
			return
		}
		_, _ = w.Write([]byte(completionBody))
	})

	if _, err := m.Complete(context.Background(), model.Request{Stage: "reflect"}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, wanted 2", n)
	}
}

func TestCompleteDoesNotRetryAuthErrors(t *testing.T) {
	var calls atomic.Int32
	m := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	})

	if _, err := m.Complete(context.Background(), model.Request{Stage: "generate"}); err == nil {
		t.Fatal("Complete() succeeded, wanted error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, wanted 1", n)
	}
}

func TestNewRejectsEmptyName(t *testing.T) {
	if _, err := openaimodel.New(openai.NewClient(option.WithAPIKey("k")), " "); err == nil {
		t.Error("New() accepted an empty model name")
	}
}
