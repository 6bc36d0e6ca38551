/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package generator turns a checked out repository and a change request into
// a unified diff with exactly two model calls.
//
// The first call drafts a diff from the full file corpus. The second asks the
// model to review the draft and answer either NO_CHANGE (or OK) or a
// corrected diff. The final diff is chosen in this order:
//
//  1. a sentinel answer keeps the draft, valid or not
//  2. a corrected diff that passes unidiff.Validate
//  3. the draft, if it passes unidiff.Validate
//  4. whichever of the correction and the draft is non-empty, correction first
//
// Reflection can therefore preserve or improve the draft but never replace a
// valid draft with an invalid correction. A failed reflection call is logged
// and treated as an empty answer.
package generator
