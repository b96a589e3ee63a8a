// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package task executes primitive invocations (shell commands, HTTP calls and
// internal operations) with a timeout, and retries the transient failures.
package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/value"
)

// Kind identifies the primitive behind an Invocation.
type Kind string

const (
	KindShell    Kind = "shell"
	KindHTTP     Kind = "http"
	KindInternal Kind = "internal"
)

// Invocation is one primitive unit of work. Only the fields of its Kind are
// meaningful.
type Invocation struct {
	Kind      Kind     `json:"kind"`
	Command   string   `json:"command,omitempty"`
	Args      []string `json:"args,omitempty"`
	URL       string   `json:"url,omitempty"`
	Payload   string   `json:"payload,omitempty"`
	Operation string   `json:"operation,omitempty"`
	// Method and Headers refine HTTP invocations; an empty Method is POST.
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Shell returns a command invocation. The command is spawned directly, not
// through a shell.
func Shell(command string, args ...string) Invocation {
	return Invocation{Kind: KindShell, Command: command, Args: append([]string(nil), args...)}
}

// HTTP returns a POST invocation carrying payload as the request body.
func HTTP(url, payload string) Invocation {
	return Invocation{Kind: KindHTTP, URL: url, Payload: payload}
}

// Request returns an HTTP invocation with an explicit method and headers.
func Request(method, url, payload string, headers map[string]string) Invocation {
	inv := Invocation{Kind: KindHTTP, Method: strings.ToUpper(method), URL: url, Payload: payload}
	if len(headers) > 0 {
		inv.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			inv.Headers[k] = v
		}
	}
	return inv
}

// HTTPMethod returns the request method, defaulting to POST.
func (inv Invocation) HTTPMethod() string {
	if inv.Method == "" {
		return "POST"
	}
	return inv.Method
}

// Internal returns an invocation of a built-in operation.
func Internal(operation string) Invocation {
	return Invocation{Kind: KindInternal, Operation: operation}
}

// Target identifies what the invocation talks to; circuit breakers are keyed by it.
func (inv Invocation) Target() string {
	switch inv.Kind {
	case KindShell:
		return "shell:" + inv.Command
	case KindHTTP:
		return "http:" + inv.URL
	case KindInternal:
		return "internal:" + inv.Operation
	default:
		return string(inv.Kind)
	}
}

// Validate reports malformed invocations.
func (inv Invocation) Validate() error {
	switch inv.Kind {
	case KindShell:
		if strings.TrimSpace(inv.Command) == "" {
			return errors.New(errors.CodeInvalidArguments, "shell invocation requires a command", nil)
		}
	case KindHTTP:
		if strings.TrimSpace(inv.URL) == "" {
			return errors.New(errors.CodeInvalidArguments, "http invocation requires a url", nil)
		}
	case KindInternal:
		if strings.TrimSpace(inv.Operation) == "" {
			return errors.New(errors.CodeInvalidArguments, "internal invocation requires an operation", nil)
		}
	default:
		return errors.New(errors.CodeInvalidArguments, fmt.Sprintf("unknown invocation kind %q", inv.Kind), nil)
	}
	return nil
}

func (inv Invocation) String() string {
	switch inv.Kind {
	case KindShell:
		return strings.TrimSpace(inv.Command + " " + strings.Join(inv.Args, " "))
	case KindHTTP:
		return inv.HTTPMethod() + " " + inv.URL
	default:
		return inv.Target()
	}
}

// Invoker performs a single attempt of an invocation.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) core.ToolOutput
}

// InvokerFunc adapts a function into an Invoker.
type InvokerFunc func(ctx context.Context, inv Invocation) core.ToolOutput

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, inv Invocation) core.ToolOutput { return f(ctx, inv) }

// Runner performs an invocation under the retry policy.
type Runner interface {
	Run(ctx context.Context, inv Invocation) core.ToolOutput
}

// PrimitiveTool is a tool whose execution is a single primitive invocation.
// Plan executors route such tools through a Runner instead of calling Execute.
type PrimitiveTool interface {
	core.Tool
	// Invocation builds the invocation for the resolved arguments. Errors are
	// reported to the plan as INVALID_ARGUMENTS.
	Invocation(args value.Value) (Invocation, error)
}

// Dispatch executes tool with args. Primitive tools run through runner so
// they get the timeout and retry policy; other tools are called directly.
func Dispatch(ctx context.Context, runner Runner, tool core.Tool, args value.Value) core.ToolOutput {
	primitive, ok := tool.(PrimitiveTool)
	if !ok || runner == nil {
		return tool.Execute(ctx, args)
	}
	inv, err := primitive.Invocation(args)
	if err != nil {
		return core.Failed(errors.CodeInvalidArguments, errors.As(err).Message)
	}
	return runner.Run(ctx, inv)
}
