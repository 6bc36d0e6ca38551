/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"chainguard.dev/tinygen/agents/model"
	"chainguard.dev/tinygen/agents/model/modeltest"
	"chainguard.dev/tinygen/diffgen/generator"
	"chainguard.dev/tinygen/diffgen/runlog"
	"chainguard.dev/tinygen/diffgen/workspace"
	"chainguard.dev/tinygen/diffgen/workspace/workspacetest"
)

const licenseDiff = `diff --git a/LICENSE b/LICENSE
new file mode 100644
--- /dev/null
+++ b/LICENSE
@@ -0,0 +1 @@
+MIT License`

type memSink struct {
	mu      sync.Mutex
	records []runlog.Record
}

func (m *memSink) Record(_ context.Context, rec runlog.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

type fixture struct {
	base     string
	sink     *memSink
	pipeline *Pipeline
}

func newFixture(t *testing.T, m model.Model, sink runlog.Sink) *fixture {
	t.Helper()
	gen, err := generator.New(m)
	if err != nil {
		t.Fatalf("generator.New: %v", err)
	}
	f := &fixture{base: t.TempDir(), sink: &memSink{}}
	if sink == nil {
		sink = f.sink
	}
	f.pipeline = New(workspace.New(workspace.WithBaseDir(f.base)), gen, runlog.NewLogger(sink))
	return f
}

// assertCleaned checks that no workspace survived the request.
func (f *fixture) assertCleaned(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.base)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("%d workspace(s) left behind in %s", len(entries), f.base)
	}
}

func (f *fixture) onlyRecord(t *testing.T) runlog.Record {
	t.Helper()
	if len(f.sink.records) != 1 {
		t.Fatalf("records = %d, wanted exactly 1", len(f.sink.records))
	}
	return f.sink.records[0]
}

func tinyRepo(t *testing.T) string {
	return workspacetest.InitRepo(t, map[string]string{
		"README.md": "# tiny\n",
		"app.py":    "print('hello')\n",
	})
}

func TestRunSuccess(t *testing.T) {
	fake := modeltest.New("gpt-4o-mini",
		modeltest.Reply{Text: licenseDiff},
		modeltest.Reply{Text: "NO_CHANGE"},
	)
	f := newFixture(t, fake, nil)
	repo := tinyRepo(t)

	diff, err := f.pipeline.Run(context.Background(), repo, "add a LICENSE file")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.HasPrefix(diff, "diff --git a/LICENSE b/LICENSE") || !strings.Contains(diff, "--- /dev/null") {
		t.Errorf("Run() = %q, wanted a new LICENSE file", diff)
	}
	if fake.Calls() != 2 {
		t.Errorf("model calls = %d, wanted 2", fake.Calls())
	}
	gen := fake.Requests()[0].User
	for _, want := range []string{"- README.md", "- app.py", "# tiny", "print('hello')"} {
		if !strings.Contains(gen, want) {
			t.Errorf("generate prompt missing %q", want)
		}
	}

	rec := f.onlyRecord(t)
	if rec.Status != runlog.StatusOK || rec.Diff != diff || rec.Error != "" {
		t.Errorf("record = %+v, wanted ok with the diff", rec)
	}
	if rec.RepoURL != repo || rec.Prompt != "add a LICENSE file" || rec.Model != "gpt-4o-mini" {
		t.Errorf("record = %+v", rec)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Error("record was not stamped")
	}
	if rec.Meta["source"] != "primary" || rec.Meta["files"] != 2 {
		t.Errorf("Meta = %v", rec.Meta)
	}
	f.assertCleaned(t)
}

func TestRunCloneFailure(t *testing.T) {
	fake := modeltest.New("gpt-4o-mini")
	f := newFixture(t, fake, nil)

	_, err := f.pipeline.Run(context.Background(), filepath.Join(t.TempDir(), "nope"), "anything")
	var cloneErr *workspace.CloneError
	if !errors.As(err, &cloneErr) {
		t.Fatalf("Run() error = %v, wanted CloneError", err)
	}
	if fake.Calls() != 0 {
		t.Errorf("model calls = %d, wanted 0", fake.Calls())
	}
	if rec := f.onlyRecord(t); rec.Status != runlog.StatusError || rec.Error == "" || rec.Diff != "" {
		t.Errorf("record = %+v, wanted an error record", rec)
	}
	f.assertCleaned(t)
}

func TestRunUnconfiguredModel(t *testing.T) {
	cfgErr := &model.ConfigurationError{Model: "gpt-4o-mini", Variable: "OPENAI_API_KEY"}
	f := newFixture(t, model.Unconfigured("gpt-4o-mini", cfgErr), nil)

	_, err := f.pipeline.Run(context.Background(), tinyRepo(t), "add a LICENSE file")
	var got *model.ConfigurationError
	if !errors.As(err, &got) {
		t.Fatalf("Run() error = %v, wanted ConfigurationError", err)
	}
	rec := f.onlyRecord(t)
	if rec.Status != runlog.StatusError || !strings.Contains(rec.Error, "OPENAI_API_KEY") {
		t.Errorf("record = %+v, wanted an error record naming the variable", rec)
	}
	f.assertCleaned(t)
}

func TestRunGenerationFailure(t *testing.T) {
	fake := modeltest.New("gpt-4o-mini", modeltest.Reply{Err: errors.New("connection reset")})
	f := newFixture(t, fake, nil)

	_, err := f.pipeline.Run(context.Background(), tinyRepo(t), "anything")
	var genErr *generator.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Run() error = %v, wanted GenerationError", err)
	}
	if rec := f.onlyRecord(t); rec.Status != runlog.StatusError {
		t.Errorf("Status = %s, wanted error", rec.Status)
	}
	f.assertCleaned(t)
}

func TestRunSinkUnreachable(t *testing.T) {
	fake := modeltest.New("gpt-4o-mini",
		modeltest.Reply{Text: licenseDiff},
		modeltest.Reply{Text: "OK"},
	)
	down := runlog.SinkFunc(func(context.Context, runlog.Record) error {
		return errors.New("dial tcp: connection refused")
	})
	f := newFixture(t, fake, down)

	diff, err := f.pipeline.Run(context.Background(), tinyRepo(t), "add a LICENSE file")
	if err != nil {
		t.Fatalf("Run() error = %v, wanted success despite the sink", err)
	}
	if diff != licenseDiff {
		t.Errorf("Run() = %q, wanted %q", diff, licenseDiff)
	}
	f.assertCleaned(t)
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: &workspace.CloneError{URL: "x", Err: errors.New("404")}, want: "clone"},
		{err: &model.ConfigurationError{Model: "m", Variable: "V"}, want: "configuration"},
		{err: &generator.GenerationError{Model: "m", Err: errors.New("x")}, want: "generation"},
		{err: context.Canceled, want: "canceled"},
		{err: errors.New("disk full"), want: "internal"},
	}
	for _, tt := range tests {
		if got := reason(tt.err); got != tt.want {
			t.Errorf("reason(%v) = %q, wanted %q", tt.err, got, tt.want)
		}
	}
}
