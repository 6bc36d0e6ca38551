/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package workspace materializes remote repositories into ephemeral
// directories. A Manager hands out one Workspace per request; the caller
// clones into it and must Close it on every exit path:
//
//	ws, err := mgr.Acquire(ctx)
//	if err != nil {
//		return err
//	}
//	defer ws.Close(ctx)
//
//	root, err := ws.Clone(ctx, repoURL)
//
// Workspaces are never pooled or reused.
package workspace
