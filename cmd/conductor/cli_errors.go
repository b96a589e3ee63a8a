// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jllopis/conductor/pkg/errors"
)

// CLIError wraps ConductorError with a hint for the user.
type CLIError struct {
	*errors.ConductorError
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(ce *errors.ConductorError, hint string) *CLIError {
	return &CLIError{ConductorError: ce, Hint: hint}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.ConductorError == nil {
		return "unknown error"
	}
	msg := e.ConductorError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the ConductorError so errors.As and CodeOf see its code.
func (e *CLIError) Unwrap() error {
	if e.ConductorError == nil {
		return nil
	}
	return e.ConductorError
}

// PrintError writes the error in text or JSON form.
func (e *CLIError) PrintError(w io.Writer, asJSON bool) {
	if asJSON {
		payload, _ := json.Marshal(map[string]any{
			"error": map[string]any{
				"code":    e.Code,
				"message": e.Message,
				"hint":    e.Hint,
			},
		})
		fmt.Fprintln(w, string(payload))
		return
	}
	fmt.Fprintf(w, "%s [%s]: %s\n", FormatErrorCode(e.Code), e.Code, e.Message)
	if e.Err != nil {
		fmt.Fprintf(w, "  Cause: %v\n", e.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	ce := errors.New(errors.CodeInvalidArguments, "invalid argument: "+reason, nil).
		WithContext("argument", arg)
	return NewCLIError(ce, "run 'conductor help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	ce := errors.New(errors.CodeInvalidArguments, "configuration error", err).
		WithContext("config_path", configPath)
	hint := "check the -set overrides and CONDUCTOR_ environment variables"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(ce, hint)
}

// NewPlanError reports a plan that could not be loaded or validated.
func NewPlanError(err error, path string) *CLIError {
	ce := errors.As(err).WithContext("plan", path)
	return NewCLIError(ce, "run 'conductor explain -plan "+path+"' to inspect the plan")
}

// NewRunFailedError reports a run that finished with failed steps.
func NewRunFailedError(failed []string) *CLIError {
	ce := errors.New(errors.CodeExecutionFailure, fmt.Sprintf("%d step output(s) failed", len(failed)), nil).
		WithContext("failed", failed)
	return NewCLIError(ce, "see the failed outputs above; transient failures were already retried")
}

// toCLIError gives every error a code and a hint.
func toCLIError(err error) *CLIError {
	if cli, ok := err.(*CLIError); ok {
		return cli
	}
	ce := errors.As(err)
	hint := ""
	switch ce.Code {
	case errors.CodeTimeout, errors.CodeContextLost:
		hint = "increase -timeout or executor.timeout"
	case errors.CodeTransportError:
		hint = "check that the target service is reachable"
	case errors.CodeMemoryError:
		hint = "check memory.provider and memory.path"
	}
	return NewCLIError(ce, hint)
}

// FormatErrorCode returns a user-friendly name for error codes.
func FormatErrorCode(code errors.Code) string {
	switch code {
	case errors.CodeToolNotFound:
		return "Tool Not Found"
	case errors.CodeInvalidArguments:
		return "Invalid Arguments"
	case errors.CodeExecutionFailure:
		return "Execution Failure"
	case errors.CodeTimeout:
		return "Timeout"
	case errors.CodeTransportError:
		return "Transport Error"
	case errors.CodeInvalidPlan:
		return "Invalid Plan"
	case errors.CodeContextLost:
		return "Context Lost"
	case errors.CodeMemoryError:
		return "Memory Error"
	case errors.CodeInternal:
		return "Internal Error"
	default:
		return string(code)
	}
}

func exit(err error, asJSON bool) {
	toCLIError(err).PrintError(os.Stderr, asJSON)
	os.Exit(1)
}
