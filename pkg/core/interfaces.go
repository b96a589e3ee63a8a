// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package core defines the capabilities shared by the orchestration engine:
// tools, their outputs, the per-run execution context and semantic events.
package core

import (
	"context"

	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/value"
)

// Tool is a named, independently invokable capability.
//
// Registries hand out the same Tool instance to concurrent plan runs, so
// Execute must be safe for concurrent use.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args value.Value) ToolOutput
}

// ToolFunc adapts a function into a Tool.
type ToolFunc struct {
	ToolName        string
	ToolDescription string
	Fn              func(ctx context.Context, args value.Value) ToolOutput
}

// NewTool builds a Tool from a function.
func NewTool(name, description string, fn func(ctx context.Context, args value.Value) ToolOutput) *ToolFunc {
	return &ToolFunc{ToolName: name, ToolDescription: description, Fn: fn}
}

// Name implements Tool.
func (t *ToolFunc) Name() string { return t.ToolName }

// Description implements Tool.
func (t *ToolFunc) Description() string { return t.ToolDescription }

// Execute implements Tool.
func (t *ToolFunc) Execute(ctx context.Context, args value.Value) ToolOutput {
	if t.Fn == nil {
		return Failed(errors.CodeExecutionFailure, "tool has no implementation")
	}
	return t.Fn(ctx, args)
}

var _ Tool = (*ToolFunc)(nil)
