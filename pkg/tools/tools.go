// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools provides the built-in conductor tools.
package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/memory"
	"github.com/jllopis/conductor/pkg/task"
	"github.com/jllopis/conductor/pkg/value"
)

const (
	// DefaultSummaryLines is the number of lines summarize keeps.
	DefaultSummaryLines = 5
	// DefaultSummaryChars caps the summarize output.
	DefaultSummaryChars = 500
)

// Registrar receives tools. *registry.Registry implements it.
type Registrar interface {
	Register(tool core.Tool)
}

// Options configures the built-in tools.
type Options struct {
	// Root confines read_file and list_directory. Defaults to the working
	// directory.
	Root string
	// SummaryLines and SummaryChars bound the summarize output.
	SummaryLines int
	SummaryChars int
	// Memory enables remember and recall.
	Memory memory.Store
	// Runner executes primitive tools called directly through Execute.
	// Plan executors use their own runner.
	Runner task.Runner
	// AllowShell registers the shell tool.
	AllowShell bool
}

func (o Options) withDefaults() Options {
	if o.Root == "" {
		o.Root = "."
	}
	if o.SummaryLines <= 0 {
		o.SummaryLines = DefaultSummaryLines
	}
	if o.SummaryChars <= 0 {
		o.SummaryChars = DefaultSummaryChars
	}
	if o.Runner == nil {
		o.Runner = task.NewExecutor()
	}
	return o
}

// Defaults returns the built-in tools for opts.
func Defaults(opts Options) []core.Tool {
	opts = opts.withDefaults()
	out := []core.Tool{
		Echo(),
		Length(),
		Summarize(opts.SummaryLines, opts.SummaryChars),
		ReadFile(opts.Root),
		ListDirectory(opts.Root, opts.Runner),
		CheckDisk(opts.Runner),
		HTTPPost(opts.Runner),
		Internal(opts.Runner),
	}
	if opts.AllowShell {
		out = append(out, ShellTool(opts.Runner))
	}
	if opts.Memory != nil {
		out = append(out, Remember(opts.Memory), Recall(opts.Memory))
	}
	return out
}

// RegisterDefaults installs the built-in tools into reg.
func RegisterDefaults(reg Registrar, opts Options) {
	for _, tool := range Defaults(opts) {
		reg.Register(tool)
	}
}

// primitive is a tool whose work is a single task.Invocation.
type primitive struct {
	name        string
	description string
	build       func(args value.Value) (task.Invocation, error)
	runner      task.Runner
}

func (p *primitive) Name() string        { return p.name }
func (p *primitive) Description() string { return p.description }

func (p *primitive) Invocation(args value.Value) (task.Invocation, error) {
	return p.build(args)
}

func (p *primitive) Execute(ctx context.Context, args value.Value) core.ToolOutput {
	inv, err := p.build(args)
	if err != nil {
		return core.Failed(errors.CodeInvalidArguments, errors.As(err).Message)
	}
	return p.runner.Run(ctx, inv)
}

var _ task.PrimitiveTool = (*primitive)(nil)

func invalidArgs(format string, args ...any) *errors.ConductorError {
	return errors.New(errors.CodeInvalidArguments, fmt.Sprintf(format, args...), nil)
}

// textArg returns the named argument as plain text; non-strings are rendered
// as JSON.
func textArg(args value.Value, name string) (string, bool) {
	v, ok := args.Get(name)
	if !ok {
		return "", false
	}
	return v.Text(), true
}

// confine resolves path under root, rejecting traversal and command
// separators.
func confine(root, path string) (string, error) {
	if strings.Contains(path, "..") || strings.Contains(path, ";") {
		return "", invalidArgs("path traversal is not allowed: %q", path)
	}
	return filepath.Join(root, filepath.Clean("/"+path)), nil
}
