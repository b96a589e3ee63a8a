// SPDX-License-Identifier: Apache-2.0
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("connection refused")
	ce := New(CodeTransportError, "http request failed", cause)

	if ce.Code != CodeTransportError {
		t.Errorf("expected CodeTransportError, got %v", ce.Code)
	}
	if ce.Err != cause {
		t.Errorf("expected cause to be preserved")
	}
	if !errors.Is(ce, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
	if !ce.Recoverable {
		t.Errorf("transport errors must default to recoverable")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{CodeTimeout, true},
		{CodeTransportError, true},
		{CodeExecutionFailure, false},
		{CodeToolNotFound, false},
		{CodeInvalidArguments, false},
		{CodeInvalidPlan, false},
	}
	for _, tt := range tests {
		if got := Retryable(tt.code); got != tt.want {
			t.Errorf("Retryable(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestWithContextAndRecoverable(t *testing.T) {
	ce := New(CodeExecutionFailure, "command failed", nil).
		WithContext("command", "ls").
		WithRecoverable(true)

	if ce.Context["command"] != "ls" {
		t.Errorf("expected context command to be 'ls'")
	}
	if !ce.Recoverable {
		t.Errorf("expected recoverable override to stick")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		ce       *ConductorError
		expected string
	}{
		{
			name:     "with cause",
			ce:       New(CodeTimeout, "operation timed out", errors.New("deadline exceeded")),
			expected: "[TIMEOUT] operation timed out: deadline exceeded",
		},
		{
			name:     "without cause",
			ce:       New(CodeInvalidPlan, "step 0: tool name is required", nil),
			expected: "[INVALID_PLAN] step 0: tool name is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ce.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestAsAndCodeOf(t *testing.T) {
	inner := New(CodeToolNotFound, "tool not found: x", nil)
	wrapped := fmt.Errorf("step failed: %w", inner)

	if got := As(wrapped); got != inner {
		t.Fatalf("expected As to unwrap to the original error")
	}
	if CodeOf(wrapped) != CodeToolNotFound {
		t.Fatalf("unexpected code: %s", CodeOf(wrapped))
	}
	if CodeOf(errors.New("plain")) != CodeInternal {
		t.Fatalf("foreign errors must map to CodeInternal")
	}
	if CodeOf(nil) != "" {
		t.Fatalf("nil error must have empty code")
	}
}

func TestMarshalJSON(t *testing.T) {
	ce := New(CodeTimeout, "timed out", errors.New("deadline")).WithContext("timeout", "5s")
	data, err := json.Marshal(ce)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["code"] != "TIMEOUT" || decoded["error"] != "deadline" || decoded["recoverable"] != true {
		t.Fatalf("unexpected json: %s", data)
	}
}
