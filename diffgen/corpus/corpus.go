/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/chainguard-dev/clog"
	"golang.org/x/text/encoding/unicode"
)

const (
	// SniffSize is how many leading bytes the text heuristic inspects.
	SniffSize = 2048

	DefaultMaxFiles    = 2000
	DefaultMaxFileSize = 1024 * 1024
	DefaultMaxChars    = 200_000
)

var textExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".tsx": {}, ".jsx": {},
	".json": {}, ".md": {}, ".toml": {}, ".ini": {},
	".yml": {}, ".yaml": {},
	".sh": {}, ".bash": {}, ".zsh": {},
	".env": {}, ".cfg": {}, ".txt": {},
	".css": {}, ".scss": {}, ".less": {},
	".html": {}, ".htm": {},
	".mjs": {}, ".cjs": {},
	".csv": {}, ".tsv": {},
	".go": {}, ".mod": {}, ".sum": {},
}

var vcsDirs = map[string]struct{}{
	".git": {}, ".hg": {}, ".svn": {},
}

// Bounds limit how much of a repository is collected.
type Bounds struct {
	// MaxFiles caps the number of selected paths.
	MaxFiles int
	// MaxFileSize is the largest file, in bytes, that may be selected.
	MaxFileSize int64
	// MaxChars truncates each file's decoded content, counted in runes.
	MaxChars int
}

// DefaultBounds returns 2000 files, 1 MiB per file and 200k characters.
func DefaultBounds() Bounds {
	return Bounds{
		MaxFiles:    DefaultMaxFiles,
		MaxFileSize: DefaultMaxFileSize,
		MaxChars:    DefaultMaxChars,
	}
}

func (b Bounds) withDefaults() Bounds {
	d := DefaultBounds()
	if b.MaxFiles <= 0 {
		b.MaxFiles = d.MaxFiles
	}
	if b.MaxFileSize <= 0 {
		b.MaxFileSize = d.MaxFileSize
	}
	if b.MaxChars <= 0 {
		b.MaxChars = d.MaxChars
	}
	return b
}

// File is a selected file and its decoded content.
type File struct {
	Path    string
	Content string
}

// Snapshot is everything collected from one repository.
type Snapshot struct {
	// Paths lists every selected file, slash separated and relative to the
	// root, in walk order.
	Paths []string
	// Files holds the readable subset of Paths, in the same order.
	Files []File
}

// Collect walks root in lexical order and returns the selected files.
func Collect(ctx context.Context, root string, bounds Bounds) (*Snapshot, error) {
	bounds = bounds.withDefaults()
	log := clog.FromContext(ctx)

	var paths []string
	errLimit := errors.New("file limit reached")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Debugf("Skipping unreadable path %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if _, ok := vcsDirs[d.Name()]; ok && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if len(paths) >= bounds.MaxFiles {
			return errLimit
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			log.Debugf("Skipping %s: %v", rel, err)
			return nil
		}
		var prefix []byte
		if !hasTextExtension(rel) && filepath.Ext(rel) != "" {
			if prefix, err = readPrefix(path); err != nil {
				log.Debugf("Skipping %s: %v", rel, err)
				return nil
			}
		}
		if Include(rel, info.Size(), prefix, bounds.MaxFileSize) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	snap := &Snapshot{Paths: paths, Files: make([]File, 0, len(paths))}
	for _, rel := range paths {
		content, err := Read(filepath.Join(root, filepath.FromSlash(rel)), bounds.MaxChars)
		if err != nil {
			log.Warnf("Dropping unreadable file %s: %v", rel, err)
			continue
		}
		snap.Files = append(snap.Files, File{Path: rel, Content: content})
	}

	log.With("selected", len(snap.Paths)).With("read", len(snap.Files)).Info("Collected repository files")
	return snap, nil
}

// Include reports whether the file at the slash-separated relative path
// qualifies for the corpus. prefix holds the leading bytes of the file and is
// only consulted when the path alone does not settle the question.
func Include(path string, size int64, prefix []byte, maxSize int64) bool {
	if underVCSDir(path) {
		return false
	}
	if size > maxSize {
		return false
	}
	if hasTextExtension(path) || filepath.Ext(path) == "" {
		return true
	}
	return looksText(prefix)
}

// Read returns the file's content decoded as UTF-8 with each invalid byte
// replaced by U+FFFD, truncated to maxChars runes.
func Read(path string, maxChars int) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	decoded, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return truncate(string(decoded), maxChars), nil
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}

func hasTextExtension(path string) bool {
	_, ok := textExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func underVCSDir(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if _, ok := vcsDirs[seg]; ok {
			return true
		}
	}
	return false
}

// looksText reports whether prefix is strict UTF-8. A multi-byte sequence
// cut off at the end of a full-size prefix is not held against the file.
func looksText(prefix []byte) bool {
	if utf8.Valid(prefix) {
		return true
	}
	if len(prefix) < SniffSize {
		return false
	}
	for i := 1; i < utf8.UTFMax && i <= len(prefix); i++ {
		if utf8.Valid(prefix[:len(prefix)-i]) {
			return true
		}
	}
	return false
}

func readPrefix(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, SniffSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}
