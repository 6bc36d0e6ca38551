/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package server exposes diff generation over HTTP.
//
// The same operation is reachable through three request encodings:
//
//	POST /generate-diff            {"repoUrl": "...", "prompt": "..."}
//	POST /generate-diff/form       repoUrl=...&prompt=...
//	POST /generate-diff/raw?repoUrl=...   (prompt as the text/plain body)
//
// Each answers {"diff": "..."} on success, 422 {"detail": ...} when a field is
// missing and 500 {"detail": ...} when generation fails. GET /health answers
// {"ok": true}.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// MaxPromptBytes bounds the raw prompt body.
const MaxPromptBytes = 1 << 20

// Runner produces a diff for a repository and a change request.
type Runner interface {
	Run(ctx context.Context, repoURL, prompt string) (string, error)
}

// Option configures the handler.
type Option func(*config)

type config struct {
	cors    bool
	timeout time.Duration
}

// WithCORS allows cross-origin requests from any origin.
func WithCORS(enabled bool) Option {
	return func(c *config) { c.cors = enabled }
}

// WithRequestTimeout bounds each generation. Zero means no deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// GenerateRequest is the JSON request body.
type GenerateRequest struct {
	RepoURL string `json:"repoUrl" form:"repoUrl"`
	Prompt  string `json:"prompt" form:"prompt"`
}

// GenerateResponse is the success body.
type GenerateResponse struct {
	Diff string `json:"diff"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type handler struct {
	runner  Runner
	timeout time.Duration
}

// New returns the HTTP handler serving runner.
func New(runner Runner, opts ...Option) http.Handler {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if cfg.cors {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
		engine.Use(cors.New(corsConfig))
	}

	h := &handler{runner: runner, timeout: cfg.timeout}
	engine.GET("/health", h.health)
	engine.POST("/generate-diff", h.generateJSON)
	engine.POST("/generate-diff/form", h.generateForm)
	engine.POST("/generate-diff/raw", h.generateRaw)
	return engine
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handler) generateJSON(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: "invalid JSON body: " + err.Error()})
		return
	}
	h.generate(c, req)
}

func (h *handler) generateForm(c *gin.Context) {
	h.generate(c, GenerateRequest{
		RepoURL: c.PostForm("repoUrl"),
		Prompt:  c.PostForm("prompt"),
	})
}

func (h *handler) generateRaw(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxPromptBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Detail: "prompt body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "reading body: " + err.Error()})
		return
	}
	h.generate(c, GenerateRequest{
		RepoURL: c.Query("repoUrl"),
		Prompt:  string(body),
	})
}

func (h *handler) generate(c *gin.Context, req GenerateRequest) {
	var missing []string
	if strings.TrimSpace(req.RepoURL) == "" {
		missing = append(missing, "repoUrl")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		missing = append(missing, "prompt")
	}
	if len(missing) > 0 {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: "missing required field(s): " + strings.Join(missing, ", ")})
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	diff, err := h.runner.Run(ctx, req.RepoURL, req.Prompt)
	if err != nil {
		clog.FromContext(ctx).With("repo_url", req.RepoURL).Errorf("Generation failed: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}
	c.JSON(http.StatusOK, GenerateResponse{Diff: diff})
}
