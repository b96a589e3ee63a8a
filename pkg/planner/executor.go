package planner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/resolver"
	"github.com/jllopis/conductor/pkg/task"
	"github.com/jllopis/conductor/pkg/telemetry"
	"github.com/jllopis/conductor/pkg/value"
)

// ToolSource resolves tool names; *registry.Registry implements it.
type ToolSource interface {
	Lookup(name string) (core.Tool, bool)
}

// Option configures an Executor.
type Option func(*Executor)

// WithRunner sets the retry wrapper used for primitive tools.
func WithRunner(r task.Runner) Option {
	return func(e *Executor) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithEventEmitter sets the receiver of plan events.
func WithEventEmitter(em core.EventEmitter) Option {
	return func(e *Executor) {
		if em != nil {
			e.emitter = em
		}
	}
}

// WithAuditStore persists step audit events.
func WithAuditStore(store AuditStore) Option {
	return func(e *Executor) {
		e.audit = store
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Executor runs plans step by step against a tool source.
type Executor struct {
	tools   ToolSource
	runner  task.Runner
	emitter core.EventEmitter
	audit   AuditStore
	logger  *slog.Logger
	tracer  trace.Tracer

	// AuditHook, when set, observes every audit event.
	AuditHook func(ctx context.Context, event AuditEvent)
}

// NewExecutor creates an executor. Primitive tools run through a default
// task.Executor unless WithRunner is given.
func NewExecutor(tools ToolSource, opts ...Option) *Executor {
	e := &Executor{
		tools:   tools,
		emitter: core.NoopEventEmitter{},
		logger:  slog.Default(),
		tracer:  otel.Tracer("conductor/planner"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runner == nil {
		e.runner = task.NewExecutor(task.WithLogger(e.logger), task.WithEventEmitter(e.emitter))
	}
	return e
}

// Run executes the steps of plan in order and returns every stored output.
// A failed step does not stop the run; ok is true iff every stored output
// succeeded. err is non-nil only when the plan is malformed, in which case
// no step runs.
func (e *Executor) Run(ctx context.Context, plan *Plan) (core.ExecutionContext, bool, error) {
	if err := plan.Validate(); err != nil {
		return nil, false, err
	}
	if e.tools == nil {
		return nil, false, errors.New(errors.CodeInvalidPlan, "no tool source configured", nil)
	}

	ctx, runID := core.EnsureRunID(ctx)
	planID := plan.ID
	if planID == "" {
		planID = runID
	}

	ctx, span := e.tracer.Start(ctx, "Planner.Run",
		trace.WithAttributes(telemetry.PlanAttributes(planID, plan.Goal, runID, len(plan.Steps))...),
	)
	defer span.End()

	e.emit(ctx, core.EventPlanStarted, runID, map[string]any{
		"plan_id": planID,
		"goal":    plan.Goal,
		"steps":   len(plan.Steps),
	})

	results := core.NewExecutionContext()
	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			results[step.OutputKey] = core.Failed(errors.CodeContextLost, "run canceled before step started")
			continue
		}
		results[step.OutputKey] = e.runStep(ctx, planID, runID, i, step, results)
	}

	ok := results.Succeeded()
	span.SetAttributes(attribute.Bool(telemetry.AttrPlanOK, ok))
	if !ok {
		span.SetStatus(codes.Error, "plan completed with failures")
	}
	e.emit(ctx, core.EventPlanCompleted, runID, map[string]any{
		"plan_id":  planID,
		"goal":     plan.Goal,
		"success":  ok,
		"failures": results.Failures(),
	})
	e.logger.InfoContext(ctx, "plan run completed",
		slog.String("plan_id", planID),
		slog.String("run_id", runID),
		slog.Bool("success", ok),
	)
	return results, ok, nil
}

func (e *Executor) runStep(ctx context.Context, planID, runID string, index int, step Step, results core.ExecutionContext) core.ToolOutput {
	stepCtx, span := e.tracer.Start(ctx, "Planner.Step",
		trace.WithAttributes(telemetry.StepAttributes(index, step.ToolName, step.OutputKey)...),
	)
	defer span.End()

	started := time.Now().UTC()
	e.record(stepCtx, AuditEvent{
		PlanID:    planID,
		RunID:     runID,
		StepIndex: index,
		ToolName:  step.ToolName,
		OutputKey: step.OutputKey,
		Status:    AuditStarted,
		StartedAt: started,
	})
	e.emit(stepCtx, core.EventStepStarted, runID, map[string]any{
		"step":       index,
		"tool":       step.ToolName,
		"output_key": step.OutputKey,
	})

	// results does not hold this step's key yet, so the step only sees earlier outputs.
	args := resolver.Resolve(step.Args, results)

	var out core.ToolOutput
	tool, found := e.tools.Lookup(step.ToolName)
	if !found {
		out = core.Failed(errors.CodeToolNotFound, "tool not found: "+step.ToolName)
	} else {
		out = e.invoke(stepCtx, tool, args)
	}

	status := AuditCompleted
	if !out.Success {
		status = AuditFailed
		span.SetAttributes(telemetry.OutcomeAttributes(false, string(out.Code))...)
		span.SetStatus(codes.Error, out.Message)
		e.logger.WarnContext(stepCtx, "plan step failed",
			slog.Int("step", index),
			slog.String("tool", step.ToolName),
			slog.String("code", string(out.Code)),
			slog.String("message", out.Message),
		)
	}
	e.record(stepCtx, AuditEvent{
		PlanID:     planID,
		RunID:      runID,
		StepIndex:  index,
		ToolName:   step.ToolName,
		OutputKey:  step.OutputKey,
		Status:     status,
		Result:     out.Result,
		Code:       out.Code,
		Error:      out.Message,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	})
	e.emit(stepCtx, core.EventStepCompleted, runID, map[string]any{
		"step":       index,
		"tool":       step.ToolName,
		"output_key": step.OutputKey,
		"success":    out.Success,
		"code":       string(out.Code),
	})
	return out
}

// invoke never panics; a panicking tool yields an EXECUTION_FAILURE output.
func (e *Executor) invoke(ctx context.Context, tool core.Tool, args value.Value) (out core.ToolOutput) {
	defer func() {
		if r := recover(); r != nil {
			out = core.Failedf(errors.CodeExecutionFailure, "tool %s panicked: %v", tool.Name(), r)
		}
	}()

	return task.Dispatch(ctx, e.runner, tool, args)
}

func (e *Executor) record(ctx context.Context, event AuditEvent) {
	if e.AuditHook != nil {
		e.AuditHook(ctx, event)
	}
	if e.audit == nil {
		return
	}
	if err := e.audit.Record(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "audit record failed",
			slog.String("run_id", event.RunID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Executor) emit(ctx context.Context, typ core.EventType, runID string, payload map[string]any) {
	ev := core.NewEvent(typ, "planner.executor", payload)
	ev.RunID = runID
	if id, ok := core.TaskID(ctx); ok {
		ev.TaskID = id
	}
	e.emitter.Emit(ctx, ev)
}

// Describe renders a one-line summary of each step for diagnostics.
func Describe(plan *Plan) []string {
	lines := make([]string, 0, len(plan.Steps))
	for i, step := range plan.Steps {
		lines = append(lines, fmt.Sprintf("%d. %s(%s) -> %s", i+1, step.ToolName, step.Args.String(), step.OutputKey))
	}
	return lines
}
