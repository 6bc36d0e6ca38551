/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metamodel selects a model backend from the model identifier.
//
// The provider is chosen by prefix:
//   - "gpt-", "chatgpt-", "o1", "o3" and "o4" use the OpenAI chat completions API
//   - "claude-" uses Anthropic, directly with an API key or via Vertex AI
//   - "gemini-" uses Gemini, directly with an API key or via Vertex AI
//
// A backend whose credential is missing is returned as an unconfigured model
// rather than an error, so the process can start and report the problem on
// every request.
package metamodel

import (
	"context"
	"fmt"
	"strings"

	"chainguard.dev/tinygen/agents/model"
	"chainguard.dev/tinygen/agents/model/claudemodel"
	"chainguard.dev/tinygen/agents/model/googlemodel"
	"chainguard.dev/tinygen/agents/model/openaimodel"
	"cloud.google.com/go/compute/metadata"
	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

// Config holds the credentials every backend may need.
type Config struct {
	Model string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	AnthropicAPIKey string

	GoogleAPIKey string
	// ProjectID and Region select Vertex AI for Claude and Gemini when no
	// API key is present. ProjectID falls back to the metadata server.
	ProjectID string
	Region    string
}

// Provider names a model backend.
type Provider string

const (
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
	Google    Provider = "google"
)

// ProviderFor returns the backend serving name.
func ProviderFor(name string) (Provider, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "gpt-"), strings.HasPrefix(lower, "chatgpt-"),
		strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"), strings.HasPrefix(lower, "o4"):
		return OpenAI, nil
	case strings.HasPrefix(lower, "claude-"):
		return Anthropic, nil
	case strings.HasPrefix(lower, "gemini-"):
		return Google, nil
	default:
		return "", fmt.Errorf("unsupported model: %s (expected gpt-*, o*, claude-* or gemini-*)", name)
	}
}

// New builds the backend for cfg.Model.
func New(ctx context.Context, cfg Config, opts ...model.Option) (model.Model, error) {
	provider, err := ProviderFor(cfg.Model)
	if err != nil {
		return nil, err
	}

	switch provider {
	case OpenAI:
		if cfg.OpenAIAPIKey == "" {
			return unconfigured(ctx, cfg.Model, "OPENAI_API_KEY"), nil
		}
		clientOpts := []openaioption.RequestOption{openaioption.WithAPIKey(cfg.OpenAIAPIKey)}
		if cfg.OpenAIBaseURL != "" {
			clientOpts = append(clientOpts, openaioption.WithBaseURL(cfg.OpenAIBaseURL))
		}
		return openaimodel.New(openai.NewClient(clientOpts...), cfg.Model, opts...)

	case Anthropic:
		if cfg.AnthropicAPIKey != "" {
			return claudemodel.New(anthropic.NewClient(anthropicoption.WithAPIKey(cfg.AnthropicAPIKey)), cfg.Model, opts...)
		}
		projectID := resolveProject(ctx, cfg.ProjectID)
		if projectID == "" {
			return unconfigured(ctx, cfg.Model, "ANTHROPIC_API_KEY"), nil
		}
		client := anthropic.NewClient(vertex.WithGoogleAuth(ctx, region(cfg.Region), projectID))
		return claudemodel.New(client, cfg.Model, opts...)

	default:
		clientCfg := &genai.ClientConfig{APIKey: cfg.GoogleAPIKey, Backend: genai.BackendGeminiAPI}
		if cfg.GoogleAPIKey == "" {
			projectID := resolveProject(ctx, cfg.ProjectID)
			if projectID == "" {
				return unconfigured(ctx, cfg.Model, "GOOGLE_API_KEY"), nil
			}
			clientCfg = &genai.ClientConfig{
				Project:  projectID,
				Location: region(cfg.Region),
				Backend:  genai.BackendVertexAI,
			}
		}
		client, err := genai.NewClient(ctx, clientCfg)
		if err != nil {
			return nil, fmt.Errorf("creating Google AI client: %w", err)
		}
		return googlemodel.New(client, cfg.Model, opts...)
	}
}

func unconfigured(ctx context.Context, name, variable string) model.Model {
	err := &model.ConfigurationError{Model: name, Variable: variable}
	clog.WarnContextf(ctx, "Model backend unavailable: %v", err)
	return model.Unconfigured(name, err)
}

func resolveProject(ctx context.Context, projectID string) string {
	if projectID != "" || !metadata.OnGCE() {
		return projectID
	}
	id, err := metadata.ProjectIDWithContext(ctx)
	if err != nil {
		clog.WarnContextf(ctx, "Failed to read project from metadata server: %v", err)
		return ""
	}
	return id
}

func region(r string) string {
	if r == "" {
		return "us-central1"
	}
	return r
}
