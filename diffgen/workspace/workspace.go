/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"golang.org/x/oauth2"
)

const (
	workspaceDirPrefix = "tinygen-"
	repoDirName        = "repo"
)

// CloneError reports a repository that could not be materialized.
type CloneError struct {
	URL string
	Err error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("cloning %s: %v", e.URL, e.Err)
}

func (e *CloneError) Unwrap() error { return e.Err }

// Manager creates workspaces. It holds only read-only configuration and is
// safe for concurrent use.
type Manager struct {
	tokenSource oauth2.TokenSource
	baseDir     string
	depth       int
}

// Option configures a Manager.
type Option func(*Manager)

// WithTokenSource authenticates https clones with the token as the basic
// auth password.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(m *Manager) { m.tokenSource = ts }
}

// WithBaseDir creates workspaces under dir instead of the system temp dir.
func WithBaseDir(dir string) Option {
	return func(m *Manager) { m.baseDir = dir }
}

// WithDepth limits clones to the given number of commits. Zero clones the
// full history.
func WithDepth(depth int) Option {
	return func(m *Manager) { m.depth = depth }
}

// New constructs a Manager.
func New(opts ...Option) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Workspace is a directory exclusively owned by one request.
type Workspace struct {
	manager *Manager
	dir     string

	closeOnce sync.Once
	closeErr  error
}

// Acquire creates a fresh, empty workspace.
func (m *Manager) Acquire(ctx context.Context) (*Workspace, error) {
	dir, err := os.MkdirTemp(m.baseDir, workspaceDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	clog.FromContext(ctx).Debugf("Created workspace %s", dir)
	return &Workspace{manager: m, dir: dir}, nil
}

// Dir returns the workspace root.
func (w *Workspace) Dir() string { return w.dir }

// Clone checks out the default branch of url into <workspace>/repo and
// returns that path. Any failure is a *CloneError; partial checkouts are
// left for Close to remove.
func (w *Workspace) Clone(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", &CloneError{URL: url, Err: errors.New("repository URL cannot be empty")}
	}

	target := filepath.Join(w.dir, repoDirName)
	clog.FromContext(ctx).Infof("Cloning repository %s into %s", url, target)

	auth, err := w.manager.authForRemote(url)
	if err != nil {
		return "", &CloneError{URL: url, Err: fmt.Errorf("getting token: %w", err)}
	}

	if _, err := git.PlainCloneContext(ctx, target, false, &git.CloneOptions{
		URL:          url,
		Auth:         auth,
		Depth:        w.manager.depth,
		SingleBranch: true,
		Tags:         git.NoTags,
	}); err != nil {
		return "", &CloneError{URL: url, Err: err}
	}
	return target, nil
}

// Close removes the workspace and everything below it. It is safe to call
// more than once.
func (w *Workspace) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			clog.FromContext(ctx).Warnf("Failed to remove workspace %s: %v", w.dir, err)
			w.closeErr = fmt.Errorf("removing workspace: %w", err)
		}
	})
	return w.closeErr
}

func (m *Manager) authForRemote(url string) (transport.AuthMethod, error) {
	if m.tokenSource == nil || !isHTTP(url) {
		return nil, nil
	}
	token, err := m.tokenSource.Token()
	if err != nil {
		return nil, err
	}
	return &githttp.BasicAuth{
		Username: "unused-when-using-access-tokens",
		Password: token.AccessToken,
	}, nil
}

func isHTTP(url string) bool {
	return strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://")
}
