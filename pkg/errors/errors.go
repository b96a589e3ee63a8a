// SPDX-License-Identifier: Apache-2.0
// Package errors provides the typed error taxonomy shared by the registry,
// task executor and plan executor.
//
// Failures inside a plan run are carried as data (core.ToolOutput with a
// Code); ConductorError is used where a Go error has to cross an API
// boundary, such as plan validation or retry classification.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// Code classifies failures for monitoring and recovery.
type Code string

const (
	// CodeToolNotFound indicates the referenced tool is not registered.
	CodeToolNotFound Code = "TOOL_NOT_FOUND"

	// CodeInvalidArguments indicates a tool rejected its resolved arguments.
	CodeInvalidArguments Code = "INVALID_ARGUMENTS"

	// CodeExecutionFailure indicates a non-zero exit, non-2xx status or
	// unknown internal operation.
	CodeExecutionFailure Code = "EXECUTION_FAILURE"

	// CodeTimeout indicates a primitive invocation exceeded its deadline.
	CodeTimeout Code = "TIMEOUT"

	// CodeTransportError indicates a connection or process-spawn failure.
	CodeTransportError Code = "TRANSPORT_ERROR"

	// CodeInvalidPlan indicates a malformed plan, detected before any step runs.
	CodeInvalidPlan Code = "INVALID_PLAN"

	// CodeContextLost indicates the caller context was canceled.
	CodeContextLost Code = "CONTEXT_LOST"

	// CodeMemoryError indicates a memory store failure.
	CodeMemoryError Code = "MEMORY_ERROR"

	// CodeInternal indicates an internal system error.
	CodeInternal Code = "INTERNAL_ERROR"
)

// Retryable reports whether failures with this code are transient.
func Retryable(code Code) bool {
	return code == CodeTimeout || code == CodeTransportError
}

// ConductorError is a typed error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type ConductorError struct {
	Code        Code
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *ConductorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *ConductorError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *ConductorError) MarshalJSON() ([]byte, error) {
	out := struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	}
	if e.Err != nil {
		out.Err = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a ConductorError. Recoverable defaults to Retryable(code).
func New(code Code, msg string, cause error) *ConductorError {
	return &ConductorError{
		Code:        code,
		Message:     msg,
		Err:         cause,
		Context:     make(map[string]interface{}),
		Recoverable: Retryable(code),
	}
}

// WithContext adds a key-value pair to the error context.
func (e *ConductorError) WithContext(key string, value interface{}) *ConductorError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable overrides the retry classification.
func (e *ConductorError) WithRecoverable(recoverable bool) *ConductorError {
	e.Recoverable = recoverable
	return e
}

// As converts err into a ConductorError, wrapping foreign errors as internal.
func As(err error) *ConductorError {
	if err == nil {
		return nil
	}
	var ce *ConductorError
	if stderrors.As(err, &ce) {
		return ce
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return As(err).Code
}
