// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/value"
)

// Assertions provides assertion helpers for testing.
type Assertions struct {
	t      *testing.T
	failed bool
}

// NewAssertions creates a new assertions helper.
func NewAssertions(t *testing.T) *Assertions {
	return &Assertions{t: t}
}

// Failed returns true if any assertion has failed.
func (a *Assertions) Failed() bool {
	return a.failed
}

// AssertEqual asserts that two values are equal.
func (a *Assertions) AssertEqual(expected, actual any, msg string) {
	a.t.Helper()
	if expected != actual {
		a.t.Errorf("%s: expected %v, got %v", msg, expected, actual)
		a.failed = true
	}
}

// AssertTrue asserts that the value is true.
func (a *Assertions) AssertTrue(value bool, msg string) {
	a.t.Helper()
	if !value {
		a.t.Errorf("%s: expected true", msg)
		a.failed = true
	}
}

// AssertContains asserts that the string contains the substring.
func (a *Assertions) AssertContains(s, substr, msg string) {
	a.t.Helper()
	if !strings.Contains(s, substr) {
		a.t.Errorf("%s: %q does not contain %q", msg, s, substr)
		a.failed = true
	}
}

// AssertNoError asserts that the error is nil.
func (a *Assertions) AssertNoError(err error, msg string) {
	a.t.Helper()
	if err != nil {
		a.t.Errorf("%s: unexpected error: %v", msg, err)
		a.failed = true
	}
}

// AssertErrorCode asserts that err carries code.
func (a *Assertions) AssertErrorCode(err error, code errors.Code, msg string) {
	a.t.Helper()
	if err == nil {
		a.t.Errorf("%s: expected %s error, got nil", msg, code)
		a.failed = true
		return
	}
	if got := errors.CodeOf(err); got != code {
		a.t.Errorf("%s: expected code %s, got %s (%v)", msg, code, got, err)
		a.failed = true
	}
}

// OutputAssertions checks a single tool output.
type OutputAssertions struct {
	*Assertions
	out core.ToolOutput
}

// AssertOutput creates assertions for out.
func (a *Assertions) AssertOutput(out core.ToolOutput) *OutputAssertions {
	return &OutputAssertions{Assertions: a, out: out}
}

// Succeeded asserts the output reports success.
func (o *OutputAssertions) Succeeded() *OutputAssertions {
	o.t.Helper()
	if !o.out.Success {
		o.t.Errorf("expected success, got %s: %s", o.out.Code, o.out.Message)
		o.failed = true
	}
	return o
}

// FailedWith asserts the output failed with code.
func (o *OutputAssertions) FailedWith(code errors.Code) *OutputAssertions {
	o.t.Helper()
	if o.out.Success {
		o.t.Errorf("expected %s failure, got success with %s", code, o.out.Result)
		o.failed = true
		return o
	}
	if o.out.Code != code {
		o.t.Errorf("expected code %s, got %s (%s)", code, o.out.Code, o.out.Message)
		o.failed = true
	}
	return o
}

// ResultEquals asserts deep equality of the result value.
func (o *OutputAssertions) ResultEquals(want value.Value) *OutputAssertions {
	o.t.Helper()
	if !value.Equal(o.out.Result, want) {
		o.t.Errorf("expected result %s, got %s", want, o.out.Result)
		o.failed = true
	}
	return o
}

// ResultText asserts the plain-text rendering of the result.
func (o *OutputAssertions) ResultText(want string) *OutputAssertions {
	o.t.Helper()
	if got := o.out.Result.Text(); got != want {
		o.t.Errorf("expected result text %q, got %q", want, got)
		o.failed = true
	}
	return o
}

// MessageContains asserts the failure message contains substr.
func (o *OutputAssertions) MessageContains(substr string) *OutputAssertions {
	o.t.Helper()
	if !strings.Contains(o.out.Message, substr) {
		o.t.Errorf("message %q does not contain %q", o.out.Message, substr)
		o.failed = true
	}
	return o
}

// RequireNoError fails the test immediately if err is not nil.
func RequireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// RequireEqual fails the test immediately if values are not equal.
func RequireEqual(t *testing.T, expected, actual any, msg string) {
	t.Helper()
	if expected != actual {
		t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// FormatOutputs renders an execution context for failure messages.
func FormatOutputs(results core.ExecutionContext) string {
	if len(results) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		out := results[k]
		if out.Success {
			parts[i] = fmt.Sprintf("%s=%s", k, out.Result)
		} else {
			parts[i] = fmt.Sprintf("%s=!%s(%s)", k, out.Code, out.Message)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
