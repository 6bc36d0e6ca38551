/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package unidiff normalizes model output into unified diffs and applies a
// shallow structural check to the result. Validate is a sanity gate, not a
// grammar: any text that starts with a diff header and contains the three
// marker substrings passes.
package unidiff

import (
	"strings"
)

const (
	// Header starts every file section of a git-style unified diff.
	Header = "diff --git "

	oldFileMarker = "--- "
	newFileMarker = "+++ "
	hunkMarker    = "@@ "
	fence         = "```"
)

// Stage identifies which step of the generation protocol produced a diff.
// The final diff is whichever candidate the decision keeps, so it carries
// the stage it came from.
type Stage string

const (
	Primary   Stage = "primary"
	Reflected Stage = "reflected"
)

// Sentinels are the reflection answers meaning "keep the proposed diff".
var Sentinels = []string{"NO_CHANGE", "OK"}

// Extract strips an enclosing code fence and anything before the first diff
// header line. The result is trimmed. Extract(Extract(x)) == Extract(x).
func Extract(raw string) string {
	s := stripFences(raw)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, Header) {
			return strings.TrimSpace(strings.Join(lines[i:], "\n"))
		}
	}
	return ""
}

// Validate reports whether candidate looks like a unified diff.
func Validate(candidate string) bool {
	return candidate != "" &&
		strings.HasPrefix(candidate, Header) &&
		strings.Contains(candidate, oldFileMarker) &&
		strings.Contains(candidate, newFileMarker) &&
		strings.Contains(candidate, hunkMarker)
}

// IsNoChange reports whether a reflection response is a sentinel, ignoring
// case and surrounding whitespace.
func IsNoChange(resp string) bool {
	resp = strings.TrimSpace(resp)
	for _, s := range Sentinels {
		if strings.EqualFold(resp, s) {
			return true
		}
	}
	return false
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, fence) {
		return s
	}
	lines := strings.Split(s, "\n")[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == fence {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
