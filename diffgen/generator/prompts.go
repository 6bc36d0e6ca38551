/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package generator

import (
	"strings"

	"chainguard.dev/tinygen/agents/promptbuilder"
	"chainguard.dev/tinygen/diffgen/corpus"
)

const generateSystem = `You are a meticulous software engineer that outputs VALID UNIX unified diffs only.

Output requirements (STRICT):
- Output RAW unified diff only. NO code fences. NO prose or explanations.
- The FIRST non-empty line MUST start with: diff --git
- Use canonical headers:
  diff --git a/path/file.ext b/path/file.ext
  --- a/path/file.ext
  +++ b/path/file.ext
- Include @@ hunk headers with correct unchanged context lines.
- When creating new files, use '/dev/null' as the old path.
- Do NOT include any text before or after the diff. No leading/trailing fences or commentary.
`

const reflectSystem = `You are a senior engineer validating a unified diff.

Return rules (MUST follow):
- If the provided diff is valid and suitably addresses the user's goal, return EXACTLY:
NO_CHANGE
  (You may also return OK; both mean keep the original.)
- Otherwise, return ONLY a corrected raw unified diff that fixes problems and better satisfies the goal.
- Absolutely no code fences, no prose, no extra text beyond either 'NO_CHANGE'/'OK' or the raw diff.
`

var generatePrompt = promptbuilder.MustNewPrompt(`Goal (user prompt):
{{goal}}

Repository file tree:
{{file_tree}}

Full file contents (for ALL files listed, truncated only if extremely large):
{{file_contents}}

Task:
Generate the unified diff that implements the goal in THIS repository.
Follow SYSTEM RULES strictly. Output ONLY the raw unified diff.
`)

var reflectPrompt = promptbuilder.MustNewPrompt(`User goal:
{{goal}}

Repo file list:
{{file_tree}}

Proposed diff:
{{proposed_diff}}
`)

// bindContext binds the goal and the file tree shared by both prompts.
func bindContext(p *promptbuilder.Prompt, goal string, snap *corpus.Snapshot) (*promptbuilder.Prompt, error) {
	p, err := p.BindText("goal", goal)
	if err != nil {
		return nil, err
	}
	if len(snap.Paths) == 0 {
		return p.BindStringLiteral("file_tree", "(no text files found)")
	}
	return p.BindText("file_tree", renderTree(snap.Paths))
}

// renderTree lists one "- path" line per path, unquoted.
func renderTree(paths []string) string {
	var b strings.Builder
	for i, path := range paths {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(path)
	}
	return b.String()
}

// generateRequest fills generatePrompt.
type generateRequest struct {
	goal string
	snap *corpus.Snapshot
}

var _ promptbuilder.Bindable = generateRequest{}

func (r generateRequest) Bind(p *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	p, err := bindContext(p, r.goal, r.snap)
	if err != nil {
		return nil, err
	}
	if len(r.snap.Files) == 0 {
		return p.BindStringLiteral("file_contents", "(no contents)")
	}
	return p.BindText("file_contents", renderFiles(r.snap.Files))
}

// reflectRequest fills reflectPrompt with an already clipped primary diff.
type reflectRequest struct {
	goal    string
	snap    *corpus.Snapshot
	primary string
}

var _ promptbuilder.Bindable = reflectRequest{}

func (r reflectRequest) Bind(p *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	p, err := bindContext(p, r.goal, r.snap)
	if err != nil {
		return nil, err
	}
	return p.BindText("proposed_diff", r.primary)
}

func renderGenerate(goal string, snap *corpus.Snapshot) (string, error) {
	return promptbuilder.Render(generatePrompt, generateRequest{goal: goal, snap: snap})
}

func renderReflect(goal string, snap *corpus.Snapshot, primary string) (string, error) {
	return promptbuilder.Render(reflectPrompt, reflectRequest{goal: goal, snap: snap, primary: primary})
}

// renderFiles lays out each file under a "===== path =====" banner.
func renderFiles(files []corpus.File) string {
	var b strings.Builder
	for i, f := range files {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("\n===== ")
		b.WriteString(f.Path)
		b.WriteString(" =====\n")
		b.WriteString(f.Content)
	}
	return b.String()
}
