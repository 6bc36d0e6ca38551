/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import "fmt"

// Bindable is a request that fills every placeholder of a template it is
// paired with. Keeping the bindings on the request type lets one Prompt
// serve many requests without the caller repeating Bind* chains.
type Bindable interface {
	Bind(prompt *Prompt) (*Prompt, error)
}

// Render applies req to prompt and builds the text. Placeholders req
// leaves unbound surface as the Build error.
func Render(prompt *Prompt, req Bindable) (string, error) {
	p, err := req.Bind(prompt)
	if err != nil {
		return "", fmt.Errorf("binding %T: %w", req, err)
	}
	return p.Build()
}
