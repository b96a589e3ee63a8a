// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"sort"

	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/value"
)

// ToolOutput is the result of one tool invocation. A failed invocation is
// reported with Success=false and a Message rather than a Go error.
type ToolOutput struct {
	Result  value.Value `json:"result"`
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Code    errors.Code `json:"code,omitempty"`
}

// Succeeded builds a successful output.
func Succeeded(result value.Value) ToolOutput {
	return ToolOutput{Result: result, Success: true}
}

// Failed builds a failed output with a null result.
func Failed(code errors.Code, message string) ToolOutput {
	return ToolOutput{Result: value.Null(), Message: message, Code: code}
}

// Failedf is Failed with a formatted message.
func Failedf(code errors.Code, format string, args ...any) ToolOutput {
	return Failed(code, fmt.Sprintf(format, args...))
}

// FailedWith builds a failed output that still carries a result, such as the
// stderr of a failed command or the body of a non-2xx response.
func FailedWith(result value.Value, code errors.Code, message string) ToolOutput {
	return ToolOutput{Result: result, Message: message, Code: code}
}

// FromError converts an error into a failed output.
func FromError(err error) ToolOutput {
	if err == nil {
		return Succeeded(value.Null())
	}
	ce := errors.As(err)
	msg := ce.Message
	if ce.Err != nil {
		msg = msg + ": " + ce.Err.Error()
	}
	return Failed(ce.Code, msg)
}

// Retryable reports whether the failure is transient.
func (o ToolOutput) Retryable() bool {
	return !o.Success && errors.Retryable(o.Code)
}

// Err converts a failed output into a ConductorError, or nil on success.
func (o ToolOutput) Err() error {
	if o.Success {
		return nil
	}
	code := o.Code
	if code == "" {
		code = errors.CodeExecutionFailure
	}
	return errors.New(code, o.Message, nil)
}

// ExecutionContext accumulates the outputs of one plan run keyed by output
// key. It is owned by a single run and is not safe for concurrent use.
type ExecutionContext map[string]ToolOutput

// NewExecutionContext returns an empty context.
func NewExecutionContext() ExecutionContext {
	return make(ExecutionContext)
}

// Lookup returns the output stored under key.
func (c ExecutionContext) Lookup(key string) (ToolOutput, bool) {
	out, ok := c[key]
	return out, ok
}

// Succeeded reports whether every stored output succeeded.
func (c ExecutionContext) Succeeded() bool {
	for _, out := range c {
		if !out.Success {
			return false
		}
	}
	return true
}

// Failures returns the sorted keys whose outputs failed.
func (c ExecutionContext) Failures() []string {
	var keys []string
	for k, out := range c {
		if !out.Success {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
