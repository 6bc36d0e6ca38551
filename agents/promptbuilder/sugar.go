/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

// Must returns p and panics on err. Templates are compile-time constants,
// so a parse failure is a programming error:
//
//	var reflectPrompt = promptbuilder.Must(promptbuilder.NewPrompt(`Goal: {{goal}}`))
func Must(p *Prompt, err error) *Prompt {
	if err != nil {
		panic("promptbuilder: " + err.Error())
	}
	return p
}

// MustNewPrompt parses template and panics if it is malformed.
func MustNewPrompt(template stringLiteral) *Prompt {
	return Must(NewPrompt(template))
}
