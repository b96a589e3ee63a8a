package planner

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/registry"
	"github.com/jllopis/conductor/pkg/task"
	"github.com/jllopis/conductor/pkg/value"
)

func mustArgs(m map[string]any) value.Value {
	return value.MustFromAny(m)
}

func echoTool() core.Tool {
	return core.NewTool("echo", "returns text", func(_ context.Context, args value.Value) core.ToolOutput {
		text, _ := args.GetString("text")
		return core.Succeeded(value.String(text))
	})
}

func lengthTool() core.Tool {
	return core.NewTool("length", "counts characters", func(_ context.Context, args value.Value) core.ToolOutput {
		text, ok := args.GetString("text")
		if !ok {
			return core.Failed(errors.CodeInvalidArguments, "text must be a string")
		}
		return core.Succeeded(value.Int(len([]rune(text))))
	})
}

func demoPlan() *Plan {
	return &Plan{Goal: "demo", Steps: []Step{
		{ToolName: "echo", Args: mustArgs(map[string]any{"text": "hi"}), OutputKey: "r1"},
		{ToolName: "length", Args: mustArgs(map[string]any{"text": "${r1}"}), OutputKey: "r2"},
	}}
}

func TestRunEndToEnd(t *testing.T) {
	exec := NewExecutor(registry.New(echoTool(), lengthTool()))
	results, ok, err := exec.Run(context.Background(), demoPlan())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !ok {
		t.Fatalf("expected success, got %+v", results)
	}
	if n, _ := results["r2"].Result.AsNumber(); n != 2 {
		t.Fatalf("expected r2 == 2, got %v", results["r2"].Result)
	}
}

func TestRunDuplicateOutputKeyLastWriteWins(t *testing.T) {
	plan := &Plan{Goal: "dup", Steps: []Step{
		{ToolName: "echo", Args: mustArgs(map[string]any{"text": "first"}), OutputKey: "a"},
		{ToolName: "echo", Args: mustArgs(map[string]any{"text": "second"}), OutputKey: "a"},
	}}
	results, ok, err := NewExecutor(registry.New(echoTool())).Run(context.Background(), plan)
	if err != nil || !ok {
		t.Fatalf("unexpected run result: ok=%v err=%v", ok, err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one entry, got %d", len(results))
	}
	if s, _ := results["a"].Result.AsString(); s != "second" {
		t.Fatalf("expected second output, got %q", s)
	}
}

func TestRunToolNotFoundContinues(t *testing.T) {
	plan := &Plan{Goal: "missing", Steps: []Step{
		{ToolName: "nonexistent", Args: value.Object(nil), OutputKey: "a"},
		{ToolName: "length", Args: mustArgs(map[string]any{"text": "${a}"}), OutputKey: "b"},
		{ToolName: "echo", Args: mustArgs(map[string]any{"text": "still here"}), OutputKey: "c"},
	}}
	results, ok, err := NewExecutor(registry.New(echoTool(), lengthTool())).Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if ok {
		t.Fatal("expected overall failure")
	}
	a := results["a"]
	if a.Success || !strings.Contains(a.Message, "tool not found") || a.Code != errors.CodeToolNotFound || !a.Result.IsNull() {
		t.Fatalf("unexpected output for a: %+v", a)
	}
	if b := results["b"]; b.Success || b.Code != errors.CodeInvalidArguments {
		t.Fatalf("expected length to reject null text, got %+v", b)
	}
	if c := results["c"]; !c.Success {
		t.Fatalf("expected later step to run, got %+v", c)
	}
}

func TestRunConstructionErrors(t *testing.T) {
	var calls int
	counting := core.NewTool("echo", "", func(context.Context, value.Value) core.ToolOutput {
		calls++
		return core.Succeeded(value.Null())
	})
	exec := NewExecutor(registry.New(counting))

	tests := []struct {
		name string
		plan *Plan
	}{
		{"nil plan", nil},
		{"empty tool name", &Plan{Steps: []Step{
			{ToolName: "echo", OutputKey: "a"},
			{ToolName: "", OutputKey: "b"},
		}}},
		{"empty output key", &Plan{Steps: []Step{
			{ToolName: "echo", OutputKey: "a"},
			{ToolName: "echo", OutputKey: " "},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, ok, err := exec.Run(context.Background(), tt.plan)
			if errors.CodeOf(err) != errors.CodeInvalidPlan {
				t.Fatalf("expected invalid plan error, got %v", err)
			}
			if ok || results != nil {
				t.Fatalf("expected no results")
			}
		})
	}
	if calls != 0 {
		t.Fatalf("no step may run for a malformed plan, got %d calls", calls)
	}
}

func TestRunEmptyPlanSucceeds(t *testing.T) {
	results, ok, err := NewExecutor(registry.New()).Run(context.Background(), &Plan{Goal: "nothing"})
	if err != nil || !ok || len(results) != 0 {
		t.Fatalf("unexpected result: %v %v %v", results, ok, err)
	}
}

func TestRunRecoversToolPanic(t *testing.T) {
	boom := core.NewTool("boom", "", func(context.Context, value.Value) core.ToolOutput {
		panic("kaboom")
	})
	plan := &Plan{Steps: []Step{{ToolName: "boom", OutputKey: "x"}}}
	results, ok, err := NewExecutor(registry.New(boom)).Run(context.Background(), plan)
	if err != nil || ok {
		t.Fatalf("unexpected run result: ok=%v err=%v", ok, err)
	}
	if out := results["x"]; out.Code != errors.CodeExecutionFailure || !strings.Contains(out.Message, "kaboom") {
		t.Fatalf("unexpected output %+v", out)
	}
}

type primitiveEcho struct{}

func (primitiveEcho) Name() string        { return "ping" }
func (primitiveEcho) Description() string { return "internal ping" }
func (primitiveEcho) Execute(context.Context, value.Value) core.ToolOutput {
	return core.Failed(errors.CodeInternal, "must go through the runner")
}
func (primitiveEcho) Invocation(args value.Value) (task.Invocation, error) {
	op, ok := args.GetString("op")
	if !ok {
		return task.Invocation{}, errors.New(errors.CodeInvalidArguments, "op is required", nil)
	}
	return task.Internal(op), nil
}

type recordingRunner struct {
	mu   sync.Mutex
	invs []task.Invocation
}

func (r *recordingRunner) Run(_ context.Context, inv task.Invocation) core.ToolOutput {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invs = append(r.invs, inv)
	return core.Succeeded(value.String("pong"))
}

func TestRunRoutesPrimitiveToolsThroughRunner(t *testing.T) {
	runner := &recordingRunner{}
	exec := NewExecutor(registry.New(primitiveEcho{}), WithRunner(runner))
	plan := &Plan{Steps: []Step{
		{ToolName: "ping", Args: mustArgs(map[string]any{"op": "ping"}), OutputKey: "ok"},
		{ToolName: "ping", Args: value.Object(nil), OutputKey: "bad"},
	}}
	results, ok, err := exec.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if ok {
		t.Fatal("expected failure from the invalid invocation")
	}
	if s, _ := results["ok"].Result.AsString(); s != "pong" {
		t.Fatalf("unexpected result %+v", results["ok"])
	}
	if bad := results["bad"]; bad.Code != errors.CodeInvalidArguments || bad.Message != "op is required" {
		t.Fatalf("unexpected output %+v", bad)
	}
	if len(runner.invs) != 1 || runner.invs[0].Operation != "ping" {
		t.Fatalf("unexpected invocations %+v", runner.invs)
	}
}

func TestRunDefaultRunnerExecutesInternalOps(t *testing.T) {
	plan := &Plan{Steps: []Step{{ToolName: "ping", Args: mustArgs(map[string]any{"op": "ping"}), OutputKey: "p"}}}
	results, ok, err := NewExecutor(registry.New(primitiveEcho{})).Run(context.Background(), plan)
	if err != nil || !ok {
		t.Fatalf("unexpected result: %+v %v", results, err)
	}
	if s, _ := results["p"].Result.AsString(); s != "pong" {
		t.Fatalf("unexpected result %+v", results["p"])
	}
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, ok, err := NewExecutor(registry.New(echoTool(), lengthTool())).Run(ctx, demoPlan())
	if err != nil || ok {
		t.Fatalf("unexpected run result: ok=%v err=%v", ok, err)
	}
	if len(results) != 2 || results["r1"].Code != errors.CodeContextLost {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestExecutorAuditHook(t *testing.T) {
	var events []AuditEvent
	exec := NewExecutor(registry.New(echoTool()))
	exec.AuditHook = func(_ context.Context, event AuditEvent) {
		events = append(events, event)
	}
	plan := &Plan{ID: "audit-plan", Steps: []Step{
		{ToolName: "echo", Args: mustArgs(map[string]any{"text": "one"}), OutputKey: "a"},
		{ToolName: "missing", OutputKey: "b"},
	}}
	if _, _, err := exec.Run(context.Background(), plan); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 audit events, got %d", len(events))
	}
	statuses := []string{events[0].Status, events[1].Status, events[2].Status, events[3].Status}
	want := []string{AuditStarted, AuditCompleted, AuditStarted, AuditFailed}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("unexpected audit statuses: %v", statuses)
		}
	}
	if events[0].PlanID != "audit-plan" || events[3].Code != errors.CodeToolNotFound {
		t.Fatalf("unexpected audit events: %+v", events)
	}
}

func TestExecutorEmitsEvents(t *testing.T) {
	var types []core.EventType
	var runIDs []string
	emitter := core.EmitterFunc(func(_ context.Context, ev core.Event) {
		types = append(types, ev.Type)
		runIDs = append(runIDs, ev.RunID)
	})
	exec := NewExecutor(registry.New(echoTool(), lengthTool()), WithEventEmitter(emitter))
	if _, _, err := exec.Run(core.WithRunID(context.Background(), "run-42"), demoPlan()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []core.EventType{
		core.EventPlanStarted,
		core.EventStepStarted, core.EventStepCompleted,
		core.EventStepStarted, core.EventStepCompleted,
		core.EventPlanCompleted,
	}
	if len(types) != len(want) {
		t.Fatalf("unexpected events %v", types)
	}
	for i := range want {
		if types[i] != want[i] || runIDs[i] != "run-42" {
			t.Fatalf("event %d: got %s/%s", i, types[i], runIDs[i])
		}
	}
}

func TestExecutorPersistsAuditToSQLite(t *testing.T) {
	db, err := sql.Open("sqlite", "file:planner_executor_audit?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	store, err := NewSQLiteAuditStore(db)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	exec := NewExecutor(registry.New(echoTool(), lengthTool()), WithAuditStore(store))
	ctx := core.WithRunID(context.Background(), "run-sqlite")
	if _, _, err := exec.Run(ctx, demoPlan()); err != nil {
		t.Fatalf("run: %v", err)
	}
	events, err := store.List(context.Background(), AuditFilter{RunID: "run-sqlite", Status: AuditCompleted})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 completed steps, got %d", len(events))
	}
	if n, _ := events[1].Result.AsNumber(); n != 2 || events[1].OutputKey != "r2" {
		t.Fatalf("unexpected audit event %+v", events[1])
	}
}

func TestDescribe(t *testing.T) {
	lines := Describe(demoPlan())
	if len(lines) != 2 || lines[1] != `2. length({"text":"${r1}"}) -> r2` {
		t.Fatalf("unexpected description %q", lines)
	}
}
