/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package promptbuilder assembles model prompts from developer-owned templates
and request data, similar to prepared statements for SQL.

Templates contain {{name}} placeholders. Names start with a letter and may
contain letters, digits and underscores. A template is parsed once:

	var generatePrompt = promptbuilder.MustNewPrompt(`Goal:
	{{goal}}

	Files:
	{{file_tree}}`)

Request data is bound by name:

	p, err := generatePrompt.BindYAML("goal", goal)
	p, err = p.BindYAML("file_tree", snapshot.Paths)
	text, err := p.Build()

BindYAML suits lists and short strings. Source text and diffs go through
BindText, which inserts the value unchanged: YAML would double-quote any
text with trailing spaces on a line, and a diff is full of them. BindJSON is
available for structured payloads, and BindStringLiteral accepts only untyped
string constants for developer-owned fragments.

Prompts are immutable. Every Bind call returns a new *Prompt, so a parsed
template can be shared by concurrent requests. Binding an unknown or already
bound name is an error, as is building a prompt with placeholders left unbound.
Replacement happens in a single pass, so placeholder syntax inside bound values
is never expanded.
*/
package promptbuilder
