/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package model defines the single-shot completion interface the diff
// generator talks to, independent of the backend SDK.
//
// Backends live in subpackages:
//   - openaimodel: OpenAI chat completions (and compatible endpoints)
//   - claudemodel: Anthropic messages
//   - googlemodel: Gemini via the Gemini API or Vertex AI
//
// metamodel picks a backend from the model id, and modeltest provides a
// scripted fake for tests.
//
// Clients are built once at process start and shared by all requests. A
// backend whose credential is missing is represented by Unconfigured, which
// fails every call with a *ConfigurationError without touching the network.
package model
