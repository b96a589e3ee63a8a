// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"sync"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/value"
)

// StubTool is a core.Tool with scripted outputs. It records every call.
//
// Scripted outputs are returned in order; once exhausted the last one
// repeats. Without a script the tool echoes its arguments.
type StubTool struct {
	name        string
	description string

	mu      sync.Mutex
	outputs []core.ToolOutput
	fn      func(ctx context.Context, args value.Value) core.ToolOutput
	calls   []value.Value
}

// NewStubTool creates a stub named name.
func NewStubTool(name string) *StubTool {
	return &StubTool{name: name, description: "stub tool " + name}
}

// Returns appends scripted outputs.
func (s *StubTool) Returns(outputs ...core.ToolOutput) *StubTool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, outputs...)
	return s
}

// ReturnsValue scripts a successful output carrying v.
func (s *StubTool) ReturnsValue(v any) *StubTool {
	return s.Returns(core.Succeeded(value.MustFromAny(v)))
}

// Fails scripts a failed output.
func (s *StubTool) Fails(code errors.Code, message string) *StubTool {
	return s.Returns(core.Failed(code, message))
}

// WithFunc computes outputs with fn instead of a script.
func (s *StubTool) WithFunc(fn func(ctx context.Context, args value.Value) core.ToolOutput) *StubTool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
	return s
}

// Name implements core.Tool.
func (s *StubTool) Name() string { return s.name }

// Description implements core.Tool.
func (s *StubTool) Description() string { return s.description }

// Execute implements core.Tool.
func (s *StubTool) Execute(ctx context.Context, args value.Value) core.ToolOutput {
	s.mu.Lock()
	n := len(s.calls)
	s.calls = append(s.calls, args)
	fn := s.fn
	var out core.ToolOutput
	switch {
	case fn != nil:
	case len(s.outputs) == 0:
		out = core.Succeeded(args)
	case n < len(s.outputs):
		out = s.outputs[n]
	default:
		out = s.outputs[len(s.outputs)-1]
	}
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, args)
	}
	return out
}

// Calls returns the arguments of every call so far.
func (s *StubTool) Calls() []value.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]value.Value(nil), s.calls...)
}

// CallCount returns the number of calls so far.
func (s *StubTool) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

var _ core.Tool = (*StubTool)(nil)
