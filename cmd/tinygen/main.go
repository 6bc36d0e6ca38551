/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs the tinygen HTTP service. Given a repository URL and a
// change request, it returns a unified diff drafted and reviewed by a
// language model.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainguard.dev/tinygen/agents/executor/retry"
	"chainguard.dev/tinygen/agents/metrics"
	"chainguard.dev/tinygen/agents/model"
	"chainguard.dev/tinygen/agents/model/metamodel"
	"chainguard.dev/tinygen/diffgen/corpus"
	"chainguard.dev/tinygen/diffgen/generator"
	"chainguard.dev/tinygen/diffgen/pipeline"
	"chainguard.dev/tinygen/diffgen/runlog"
	"chainguard.dev/tinygen/diffgen/runlog/gcssink"
	"chainguard.dev/tinygen/diffgen/runlog/pgsink"
	"chainguard.dev/tinygen/diffgen/server"
	"chainguard.dev/tinygen/diffgen/workspace"
	"cloud.google.com/go/storage"
	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/chainguard-dev/terraform-infra-common/pkg/httpmetrics"
	"github.com/chainguard-dev/terraform-infra-common/pkg/profiler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

type config struct {
	Port        int `env:"PORT,default=8080"`
	MetricsPort int `env:"METRICS_PORT,default=2112"`

	Model         string `env:"MODEL,default=gpt-4o-mini"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	AnthropicKey  string `env:"ANTHROPIC_API_KEY"`
	GoogleAPIKey  string `env:"GOOGLE_API_KEY"`
	ProjectID     string `env:"GOOGLE_CLOUD_PROJECT"`
	Region        string `env:"GOOGLE_CLOUD_REGION,default=us-central1"`
	MaxTokens     int64  `env:"MODEL_MAX_TOKENS,default=16384"`
	MaxRetries    int    `env:"MODEL_MAX_RETRIES,default=3"`

	GitToken string `env:"GIT_TOKEN"`

	RunlogDatabaseURL string `env:"RUNLOG_DATABASE_URL"`
	RunlogBucket      string `env:"RUNLOG_BUCKET"`

	MaxFiles       int `env:"MAX_FILES,default=2000"`
	MaxFileSizeKB  int `env:"MAX_FILE_SIZE_KB,default=1024"`
	FileCharCap    int `env:"FILE_CHAR_CAP,default=200000"`
	ReflectDiffCap int `env:"REFLECT_DIFF_CAP,default=250000"`
	LogDiffCap     int `env:"LOG_DIFF_CAP,default=900000"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=0s"`
	EnableCORS     bool          `env:"ENABLE_CORS,default=false"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go httpmetrics.ScrapeDiskUsage(ctx)
	profiler.SetupProfiler()
	defer httpmetrics.SetupTracer(ctx)()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	retryCfg := retry.Default()
	retryCfg.MaxRetries = cfg.MaxRetries
	m, err := metamodel.New(ctx, metamodel.Config{
		Model:           cfg.Model,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		AnthropicAPIKey: cfg.AnthropicKey,
		GoogleAPIKey:    cfg.GoogleAPIKey,
		ProjectID:       cfg.ProjectID,
		Region:          cfg.Region,
	},
		model.WithMaxTokens(cfg.MaxTokens),
		model.WithRetryConfig(retryCfg),
		model.WithMetrics(metrics.NewGenAI(metrics.MeterName)),
	)
	if err != nil {
		clog.FatalContextf(ctx, "creating model: %v", err)
	}

	gen, err := generator.New(m,
		generator.WithBounds(corpus.Bounds{
			MaxFiles:    cfg.MaxFiles,
			MaxFileSize: int64(cfg.MaxFileSizeKB) * 1024,
			MaxChars:    cfg.FileCharCap,
		}),
		generator.WithReflectLimit(cfg.ReflectDiffCap),
	)
	if err != nil {
		clog.FatalContextf(ctx, "creating generator: %v", err)
	}

	var wsOpts []workspace.Option
	if cfg.GitToken != "" {
		wsOpts = append(wsOpts, workspace.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitToken})))
	}

	sink, closeSinks := setupSinks(ctx, cfg)
	defer closeSinks()

	p := pipeline.New(
		workspace.New(wsOpts...),
		gen,
		runlog.NewLogger(sink, runlog.WithMaxDiff(cfg.LogDiffCap)),
	)

	app := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.New(p, server.WithCORS(cfg.EnableCORS), server.WithRequestTimeout(cfg.RequestTimeout)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{app, metricsSrv} {
		eg.Go(func() error {
			clog.InfoContextf(ctx, "Listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return errors.Join(app.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
	})

	clog.InfoContextf(ctx, "Starting tinygen with model %s", m.Name())
	if err := eg.Wait(); err != nil {
		clog.FatalContextf(ctx, "server failed: %v", err)
	}
}

// setupSinks connects the configured run log stores. A store that cannot be
// reached at startup is skipped; the structured log always receives records.
func setupSinks(ctx context.Context, cfg config) (runlog.Sink, func()) {
	sinks := []runlog.Sink{runlog.LogSink{}}
	var closers []func()

	if cfg.RunlogDatabaseURL != "" {
		s, pool, err := pgsink.Connect(ctx, cfg.RunlogDatabaseURL)
		if err != nil {
			clog.WarnContextf(ctx, "Run log database unavailable, continuing without it: %v", err)
		} else {
			sinks = append(sinks, s)
			closers = append(closers, pool.Close)
		}
	}

	if cfg.RunlogBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			clog.WarnContextf(ctx, "Run log bucket unavailable, continuing without it: %v", err)
		} else if s, err := gcssink.New(client, cfg.RunlogBucket, gcssink.DefaultPrefix); err != nil {
			clog.WarnContextf(ctx, "Run log bucket unavailable, continuing without it: %v", err)
			client.Close()
		} else {
			sinks = append(sinks, s)
			closers = append(closers, func() { client.Close() })
		}
	}

	return runlog.Multi(sinks...), func() {
		for _, c := range closers {
			c()
		}
	}
}
