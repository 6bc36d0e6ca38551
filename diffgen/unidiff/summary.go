/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package unidiff

import (
	"errors"
	"fmt"

	"github.com/waigani/diffparser"
)

// Summary describes what a diff touches.
type Summary struct {
	Files   []string `json:"files"`
	Added   int      `json:"added"`
	Removed int      `json:"removed"`
}

// Summarize parses diff and counts the files and lines it changes.
func Summarize(diff string) (*Summary, error) {
	if !Validate(diff) {
		return nil, errors.New("not a unified diff")
	}
	parsed, err := diffparser.Parse(diff)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	s := &Summary{Files: make([]string, 0, len(parsed.Files))}
	for _, f := range parsed.Files {
		name := f.NewName
		if name == "" {
			name = f.OrigName
		}
		s.Files = append(s.Files, name)
		for _, h := range f.Hunks {
			for _, l := range h.WholeRange.Lines {
				switch l.Mode {
				case diffparser.ADDED:
					s.Added++
				case diffparser.REMOVED:
					s.Removed++
				}
			}
		}
	}
	return s, nil
}
