// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package testing provides utilities for testing conductor plans and tools.
//
// This package includes:
//   - Scenario definitions for declarative plan testing
//   - Stub tools with scripted outputs
//   - Assertion helpers for tool outputs
//   - Event collectors for verifying emitted events
//
// Example usage:
//
//	scenario := testing.NewScenario("summarize").
//	    WithPlanYAML(doc).
//	    ExpectSuccess().
//	    ExpectOutput("summary", testing.Contains("ERROR"))
//
//	result := scenario.Run(t, executor)
//	result.Assert(t, scenario)
package testing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/planner"
)

// Scenario defines a plan run and the expectations on its outcome.
type Scenario struct {
	name          string
	description   string
	plan          *planner.Plan
	planErr       error
	context       context.Context
	timeout       time.Duration
	collector     *EventCollector
	expectations  []Expectation
	setupFuncs    []func() error
	teardownFuncs []func() error
}

// Expectation defines a condition to verify after running a scenario.
type Expectation interface {
	// Check verifies the expectation against the result.
	Check(result *ScenarioResult) error
	// Description returns a human-readable description of the expectation.
	Description() string
}

// ScenarioResult contains the outcome of running a scenario.
type ScenarioResult struct {
	Outputs  core.ExecutionContext
	Success  bool
	Error    error
	Events   []core.Event
	Duration time.Duration
}

// PlanRunner runs plans. *planner.Executor implements it.
type PlanRunner interface {
	Run(ctx context.Context, plan *planner.Plan) (core.ExecutionContext, bool, error)
}

// NewScenario creates a new test scenario with the given name.
func NewScenario(name string) *Scenario {
	return &Scenario{
		name:         name,
		timeout:      30 * time.Second,
		context:      context.Background(),
		expectations: make([]Expectation, 0),
	}
}

// WithDescription adds a description to the scenario.
func (s *Scenario) WithDescription(desc string) *Scenario {
	s.description = desc
	return s
}

// WithPlan sets the plan to run.
func (s *Scenario) WithPlan(plan *planner.Plan) *Scenario {
	s.plan = plan
	s.planErr = nil
	return s
}

// WithPlanYAML parses doc as the plan to run. Parse errors fail Run unless
// an ExpectErrorCode expectation is set.
func (s *Scenario) WithPlanYAML(doc string) *Scenario {
	s.plan, s.planErr = planner.ParseYAML([]byte(doc))
	return s
}

// WithPlanJSON parses doc as the plan to run. Parse errors fail Run unless
// an ExpectErrorCode expectation is set.
func (s *Scenario) WithPlanJSON(doc string) *Scenario {
	s.plan, s.planErr = planner.ParseJSON([]byte(doc))
	return s
}

// WithContext sets the context for the scenario.
func (s *Scenario) WithContext(ctx context.Context) *Scenario {
	s.context = ctx
	return s
}

// WithTimeout sets the timeout for the scenario.
func (s *Scenario) WithTimeout(d time.Duration) *Scenario {
	s.timeout = d
	return s
}

// WithEvents attaches the collector the runner emits into, so event
// expectations can be checked.
func (s *Scenario) WithEvents(c *EventCollector) *Scenario {
	s.collector = c
	return s
}

// WithSetup adds a setup function to run before the scenario.
func (s *Scenario) WithSetup(fn func() error) *Scenario {
	s.setupFuncs = append(s.setupFuncs, fn)
	return s
}

// WithTeardown adds a teardown function to run after the scenario.
func (s *Scenario) WithTeardown(fn func() error) *Scenario {
	s.teardownFuncs = append(s.teardownFuncs, fn)
	return s
}

// Expect adds an expectation to the scenario.
func (s *Scenario) Expect(exp Expectation) *Scenario {
	s.expectations = append(s.expectations, exp)
	return s
}

// ExpectSuccess expects every stored output to have succeeded.
func (s *Scenario) ExpectSuccess() *Scenario {
	return s.Expect(&successExpectation{want: true})
}

// ExpectFailure expects at least one failed output.
func (s *Scenario) ExpectFailure() *Scenario {
	return s.Expect(&successExpectation{want: false})
}

// ExpectNoError expects the plan to be accepted by the executor.
func (s *Scenario) ExpectNoError() *Scenario {
	return s.Expect(&noErrorExpectation{})
}

// ExpectErrorCode expects the executor to refuse the plan with code.
func (s *Scenario) ExpectErrorCode(code errors.Code) *Scenario {
	return s.Expect(&errorCodeExpectation{code: code})
}

// ExpectOutput expects the plain-text result stored under key to match.
func (s *Scenario) ExpectOutput(key string, matcher StringMatcher) *Scenario {
	return s.Expect(&outputExpectation{key: key, matcher: matcher})
}

// ExpectOutputCode expects the output stored under key to have failed with code.
func (s *Scenario) ExpectOutputCode(key string, code errors.Code) *Scenario {
	return s.Expect(&outputCodeExpectation{key: key, code: code})
}

// ExpectOutputCount expects exactly n stored outputs.
func (s *Scenario) ExpectOutputCount(n int) *Scenario {
	return s.Expect(&outputCountExpectation{n: n})
}

// ExpectEvent expects an event of the given type.
func (s *Scenario) ExpectEvent(eventType core.EventType) *Scenario {
	return s.Expect(&eventExpectation{eventType: eventType})
}

// ExpectMaxDuration expects the scenario to complete within the given duration.
func (s *Scenario) ExpectMaxDuration(d time.Duration) *Scenario {
	return s.Expect(&maxDurationExpectation{max: d})
}

// Run executes the scenario against runner.
func (s *Scenario) Run(t *testing.T, runner PlanRunner) *ScenarioResult {
	t.Helper()

	// A rejected plan document is the run error when the scenario expects
	// one; otherwise the scenario cannot run at all.
	if s.planErr != nil {
		if !s.expectsError() {
			t.Fatalf("scenario %q: invalid plan document: %v", s.name, s.planErr)
		}
		return &ScenarioResult{Error: s.planErr}
	}

	for _, setup := range s.setupFuncs {
		if err := setup(); err != nil {
			t.Fatalf("scenario %q setup failed: %v", s.name, err)
		}
	}

	defer func() {
		for _, teardown := range s.teardownFuncs {
			if err := teardown(); err != nil {
				t.Errorf("scenario %q teardown failed: %v", s.name, err)
			}
		}
	}()

	ctx, cancel := context.WithTimeout(s.context, s.timeout)
	defer cancel()

	start := time.Now()
	outputs, ok, err := runner.Run(ctx, s.plan)
	result := &ScenarioResult{
		Outputs:  outputs,
		Success:  ok,
		Error:    err,
		Duration: time.Since(start),
	}
	if s.collector != nil {
		result.Events = s.collector.Events()
	}
	return result
}

func (s *Scenario) expectsError() bool {
	for _, exp := range s.expectations {
		if _, ok := exp.(*errorCodeExpectation); ok {
			return true
		}
	}
	return false
}

// Assert checks all expectations and reports failures to the test.
func (r *ScenarioResult) Assert(t *testing.T, scenario *Scenario) {
	t.Helper()

	for _, exp := range scenario.expectations {
		if err := exp.Check(r); err != nil {
			t.Errorf("scenario %q: expectation %q failed: %v", scenario.name, exp.Description(), err)
		}
	}
}

// StringMatcher defines how to match strings in expectations.
type StringMatcher interface {
	Match(s string) bool
	Description() string
}

// Contains matches strings containing substr.
func Contains(substr string) StringMatcher {
	return &containsMatcher{substr: substr}
}

// Equals matches strings equal to expected.
func Equals(expected string) StringMatcher {
	return &equalsMatcher{expected: expected}
}

// Regex matches strings against pattern.
func Regex(pattern string) StringMatcher {
	return &regexMatcher{pattern: pattern}
}

// HasPrefix matches strings starting with prefix.
func HasPrefix(prefix string) StringMatcher {
	return &prefixMatcher{prefix: prefix}
}

type containsMatcher struct {
	substr string
}

func (m *containsMatcher) Match(s string) bool {
	return strings.Contains(s, m.substr)
}

func (m *containsMatcher) Description() string {
	return fmt.Sprintf("contains %q", m.substr)
}

type equalsMatcher struct {
	expected string
}

func (m *equalsMatcher) Match(s string) bool {
	return s == m.expected
}

func (m *equalsMatcher) Description() string {
	return fmt.Sprintf("equals %q", m.expected)
}

type regexMatcher struct {
	pattern string
}

func (m *regexMatcher) Match(s string) bool {
	re, err := regexp.Compile(m.pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func (m *regexMatcher) Description() string {
	return fmt.Sprintf("matches /%s/", m.pattern)
}

type prefixMatcher struct {
	prefix string
}

func (m *prefixMatcher) Match(s string) bool {
	return strings.HasPrefix(s, m.prefix)
}

func (m *prefixMatcher) Description() string {
	return fmt.Sprintf("has prefix %q", m.prefix)
}

type successExpectation struct {
	want bool
}

func (e *successExpectation) Check(r *ScenarioResult) error {
	if r.Success != e.want {
		return fmt.Errorf("success = %v, outputs %s", r.Success, FormatOutputs(r.Outputs))
	}
	return nil
}

func (e *successExpectation) Description() string {
	if e.want {
		return "run succeeds"
	}
	return "run fails"
}

type noErrorExpectation struct{}

func (e *noErrorExpectation) Check(r *ScenarioResult) error {
	if r.Error != nil {
		return fmt.Errorf("unexpected error: %v", r.Error)
	}
	return nil
}

func (e *noErrorExpectation) Description() string {
	return "no error"
}

type errorCodeExpectation struct {
	code errors.Code
}

func (e *errorCodeExpectation) Check(r *ScenarioResult) error {
	if r.Error == nil {
		return fmt.Errorf("expected error, got nil")
	}
	if got := errors.CodeOf(r.Error); got != e.code {
		return fmt.Errorf("error code %s: %v", got, r.Error)
	}
	return nil
}

func (e *errorCodeExpectation) Description() string {
	return fmt.Sprintf("error with code %s", e.code)
}

type outputExpectation struct {
	key     string
	matcher StringMatcher
}

func (e *outputExpectation) Check(r *ScenarioResult) error {
	out, ok := r.Outputs.Lookup(e.key)
	if !ok {
		return fmt.Errorf("no output stored under %q", e.key)
	}
	if text := out.Result.Text(); !e.matcher.Match(text) {
		return fmt.Errorf("output %q does not match: %q", e.key, text)
	}
	return nil
}

func (e *outputExpectation) Description() string {
	return fmt.Sprintf("output %s %s", e.key, e.matcher.Description())
}

type outputCodeExpectation struct {
	key  string
	code errors.Code
}

func (e *outputCodeExpectation) Check(r *ScenarioResult) error {
	out, ok := r.Outputs.Lookup(e.key)
	if !ok {
		return fmt.Errorf("no output stored under %q", e.key)
	}
	if out.Success || out.Code != e.code {
		return fmt.Errorf("output %q: success=%v code=%s", e.key, out.Success, out.Code)
	}
	return nil
}

func (e *outputCodeExpectation) Description() string {
	return fmt.Sprintf("output %s failed with %s", e.key, e.code)
}

type outputCountExpectation struct {
	n int
}

func (e *outputCountExpectation) Check(r *ScenarioResult) error {
	if len(r.Outputs) != e.n {
		return fmt.Errorf("got %d outputs: %s", len(r.Outputs), FormatOutputs(r.Outputs))
	}
	return nil
}

func (e *outputCountExpectation) Description() string {
	return fmt.Sprintf("%d outputs", e.n)
}

type eventExpectation struct {
	eventType core.EventType
}

func (e *eventExpectation) Check(r *ScenarioResult) error {
	for _, ev := range r.Events {
		if ev.Type == e.eventType {
			return nil
		}
	}
	return fmt.Errorf("event %s not emitted", e.eventType)
}

func (e *eventExpectation) Description() string {
	return fmt.Sprintf("event %s emitted", e.eventType)
}

type maxDurationExpectation struct {
	max time.Duration
}

func (e *maxDurationExpectation) Check(r *ScenarioResult) error {
	if r.Duration > e.max {
		return fmt.Errorf("took %v", r.Duration)
	}
	return nil
}

func (e *maxDurationExpectation) Description() string {
	return fmt.Sprintf("duration <= %v", e.max)
}
