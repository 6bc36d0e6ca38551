/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package corpus selects and reads the text files of a checked out
// repository for inclusion in a model prompt.
//
// Selection is heuristic. A file qualifies when it is within the size bound
// and either has an allow-listed extension, has no extension, or its first
// 2048 bytes decode as strict UTF-8. Binary files whose prefix happens to be
// valid UTF-8 can slip through; the size and count bounds cap the damage.
// Version control metadata directories are never walked.
package corpus
