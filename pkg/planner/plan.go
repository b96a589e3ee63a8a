// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package planner holds the plan model, the plan executor and the planners
// that turn goals into plans.
package planner

import (
	"fmt"
	"strings"

	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/resolver"
	"github.com/jllopis/conductor/pkg/value"
)

// Plan is an ordered list of tool invocations meant to satisfy one goal.
// Executors consume plans read-only.
type Plan struct {
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Goal  string `json:"goal" yaml:"goal"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Step invokes one tool. Args may embed "${key}" references to the outputs
// of earlier steps. OutputKey may repeat; the later step wins.
type Step struct {
	ToolName  string      `json:"tool_name" yaml:"tool_name"`
	Args      value.Value `json:"args" yaml:"args"`
	OutputKey string      `json:"output_key" yaml:"output_key"`
}

// Validate reports structural problems that prevent a run from starting.
func (p *Plan) Validate() error {
	if p == nil {
		return errors.New(errors.CodeInvalidPlan, "plan is nil", nil)
	}
	for i, step := range p.Steps {
		if strings.TrimSpace(step.ToolName) == "" {
			return errors.New(errors.CodeInvalidPlan, fmt.Sprintf("step %d: tool name is required", i), nil).
				WithContext("step", i)
		}
		if strings.TrimSpace(step.OutputKey) == "" {
			return errors.New(errors.CodeInvalidPlan, fmt.Sprintf("step %d: output key is required", i), nil).
				WithContext("step", i)
		}
	}
	return nil
}

// OutputKeys returns the distinct output keys in first-use order.
func (p *Plan) OutputKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, step := range p.Steps {
		if !seen[step.OutputKey] {
			seen[step.OutputKey] = true
			keys = append(keys, step.OutputKey)
		}
	}
	return keys
}

// Warnings lists references that no earlier step produces. Such references
// resolve to null at run time; they are not errors.
func (p *Plan) Warnings() []string {
	var out []string
	produced := make(map[string]bool)
	for i, step := range p.Steps {
		for _, ref := range resolver.References(step.Args) {
			if !produced[ref] {
				out = append(out, fmt.Sprintf("step %d (%s): ${%s} is not produced by an earlier step", i, step.ToolName, ref))
			}
		}
		produced[step.OutputKey] = true
	}
	return out
}
