// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/memory"
	"github.com/jllopis/conductor/pkg/planner"
	"github.com/jllopis/conductor/pkg/telemetry"
)

const eventSource = "agent.loop"

// DefaultBuffer is the event channel capacity used when none is configured.
const DefaultBuffer = 64

// PlanRunner runs a plan. *planner.Executor implements it.
type PlanRunner interface {
	Run(ctx context.Context, plan *planner.Plan) (core.ExecutionContext, bool, error)
}

// Option configures a Loop.
type Option func(*Loop)

// WithPlanner sets the planner used to turn goals into plans. The keyword
// planner with its default rules is used otherwise.
func WithPlanner(p planner.Planner) Option {
	return func(l *Loop) {
		if p != nil {
			l.planner = p
		}
	}
}

// WithMemory stores a summary entry for every completed task.
func WithMemory(store memory.Store) Option {
	return func(l *Loop) { l.memory = store }
}

// WithEventEmitter receives state changes, rejections, alerts and messages.
func WithEventEmitter(em core.EventEmitter) Option {
	return func(l *Loop) {
		if em != nil {
			l.emitter = em
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithBuffer sets the event channel capacity.
func WithBuffer(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.buffer = n
		}
	}
}

// pending is the task currently owned by the loop.
type pending struct {
	task    *core.Task
	reply   chan<- Result
	outputs core.ExecutionContext
}

// Loop drains its event channel on a single goroutine. Only that goroutine
// mutates the state; State may be read from anywhere.
type Loop struct {
	runner  PlanRunner
	planner planner.Planner
	memory  memory.Store
	emitter core.EventEmitter
	logger  *slog.Logger
	tracer  trace.Tracer
	tasks   metric.Int64Counter
	buffer  int

	events chan Event

	mu    sync.RWMutex
	state State

	current *pending
	wg      sync.WaitGroup
}

// New builds a loop that runs plans through runner.
func New(runner PlanRunner, opts ...Option) *Loop {
	l := &Loop{
		runner:  runner,
		planner: planner.NewKeywordPlanner(),
		emitter: core.NoopEventEmitter{},
		logger:  slog.Default(),
		tracer:  otel.Tracer("conductor/agent"),
		buffer:  DefaultBuffer,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.events = make(chan Event, l.buffer)
	tasks, err := otel.Meter("conductor/agent").Int64Counter(
		"conductor.agent.tasks",
		metric.WithDescription("Tasks completed by the agent loop"),
	)
	if err != nil {
		l.logger.Warn("agent metrics unavailable", slog.String("error", err.Error()))
	}
	l.tasks = tasks
	return l
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Send enqueues ev, blocking while the channel is full.
func (l *Loop) Send(ctx context.Context, ev Event) error {
	select {
	case l.events <- ev:
		return nil
	case <-ctx.Done():
		return errors.New(errors.CodeContextLost, "send canceled", ctx.Err())
	}
}

// Submit sends goal as InputReceived and waits for its Result.
func (l *Loop) Submit(ctx context.Context, goal string) (Result, error) {
	reply := make(chan Result, 1)
	if err := l.Send(ctx, InputReceived{Goal: goal, Reply: reply}); err != nil {
		return Result{}, err
	}
	select {
	case res := <-reply:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, errors.New(errors.CodeContextLost, "wait canceled", ctx.Err())
	}
}

// Run consumes events until ctx is done, then waits for in-flight plan runs
// to return.
func (l *Loop) Run(ctx context.Context) error {
	defer l.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-l.events:
			l.handle(ctx, ev)
		}
	}
}

func (l *Loop) handle(ctx context.Context, ev Event) {
	switch ev := ev.(type) {
	case InputReceived:
		l.onInput(ctx, ev)
	case taskDispatched:
		if l.current != nil && l.current.task.ID == ev.TaskID && l.state.Status == StatusWaitingForTask {
			l.current.task.Start()
			l.setState(ctx, State{Status: StatusExecuting})
		}
	case TaskCompleted:
		l.onCompleted(ctx, ev)
	case SystemAlert:
		l.logger.WarnContext(ctx, "system alert", slog.String("message", ev.Message))
		l.emit(ctx, core.EventAgentAlert, "", map[string]any{"message": ev.Message})
	case ExternalMessage:
		l.logger.InfoContext(ctx, "external message received", slog.String("data", ev.Data))
		l.emit(ctx, core.EventAgentMessage, "", map[string]any{"data": ev.Data})
	case Reset:
		if l.state.Status == StatusError {
			l.setState(ctx, State{Status: StatusIdle})
		}
	default:
		l.logger.WarnContext(ctx, "unknown agent event", slog.String("type", fmt.Sprintf("%T", ev)))
	}
}

func (l *Loop) onInput(ctx context.Context, ev InputReceived) {
	switch l.state.Status {
	case StatusError:
		l.reject(ctx, ev, ErrRejected)
		return
	case StatusWaitingForTask, StatusExecuting:
		l.reject(ctx, ev, ErrBusy)
		return
	}

	p := &pending{task: core.NewTask(ev.Goal), reply: ev.Reply}
	l.current = p
	l.setState(ctx, State{Status: StatusWaitingForTask})

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.execute(ctx, p)
	}()
}

// execute runs on its own goroutine and reports back through the channel.
func (l *Loop) execute(ctx context.Context, p *pending) {
	taskID := p.task.ID
	ctx = core.WithTaskID(ctx, taskID)
	ctx, span := l.tracer.Start(ctx, "Agent.Task",
		trace.WithAttributes(telemetry.TaskAttributes(taskID, p.task.Goal)...),
	)
	defer span.End()

	done := TaskCompleted{TaskID: taskID}
	plan, ok := l.planner.GeneratePlan(ctx, p.task.Goal)
	switch {
	case !ok || plan == nil:
		done.Reason = ReasonUnrecognizedGoal
	case l.runner == nil:
		done.Reason = "no plan runner configured"
	default:
		if l.Send(ctx, taskDispatched{TaskID: taskID}) != nil {
			return
		}
		outputs, success, err := l.runner.Run(ctx, plan)
		p.outputs = outputs
		done.Success = success
		switch {
		case err != nil:
			done.Reason = errors.As(err).Message
		case !success:
			done.Reason = "failed steps: " + strings.Join(outputs.Failures(), ", ")
		}
	}
	if !done.Success {
		span.SetStatus(codes.Error, done.Reason)
	}
	_ = l.Send(ctx, done)
}

func (l *Loop) onCompleted(ctx context.Context, ev TaskCompleted) {
	if l.state.Status != StatusWaitingForTask && l.state.Status != StatusExecuting {
		l.logger.WarnContext(ctx, "task completion ignored",
			slog.String("task_id", ev.TaskID),
			slog.String("state", l.state.String()),
		)
		return
	}
	p := l.current
	if p != nil && ev.TaskID != "" && ev.TaskID != p.task.ID {
		l.logger.WarnContext(ctx, "completion for unknown task ignored", slog.String("task_id", ev.TaskID))
		return
	}
	l.current = nil

	outcome := "success"
	if ev.Success {
		l.setState(ctx, State{Status: StatusIdle})
	} else {
		outcome = "failure"
		reason := ev.Reason
		if reason == "" {
			reason = "task failed"
		}
		ev.Reason = reason
		l.setState(ctx, State{Status: StatusError, Reason: reason})
	}
	if l.tasks != nil {
		l.tasks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	if p == nil {
		return
	}

	if ev.Success {
		p.task.Complete()
	} else {
		p.task.Fail(ev.Reason)
	}
	l.remember(ctx, p.task)

	res := Result{TaskID: p.task.ID, Goal: p.task.Goal, Success: ev.Success, Outputs: p.outputs}
	if !ev.Success {
		res.Err = errors.New(errors.CodeExecutionFailure, ev.Reason, nil).WithContext("task_id", p.task.ID)
	}
	deliver(p.reply, res)
}

// remember writes the task summary to memory. Failures are logged only.
func (l *Loop) remember(ctx context.Context, task *core.Task) {
	if l.memory == nil {
		return
	}
	summary := fmt.Sprintf("%s: %s", task.Status, task.Goal)
	if task.Error != "" {
		summary += " (" + task.Error + ")"
	}
	entry := memory.Entry{
		Key:       "summary_" + task.ID,
		Value:     summary,
		Tags:      []string{"summary", task.ID},
		Kind:      memory.KindLongTerm,
		Timestamp: task.FinishedAt,
	}
	if err := l.memory.Write(ctx, entry); err != nil {
		l.logger.ErrorContext(ctx, "task summary not stored",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (l *Loop) reject(ctx context.Context, ev InputReceived, err *errors.ConductorError) {
	l.logger.InfoContext(ctx, "input rejected",
		slog.String("goal", ev.Goal),
		slog.String("state", l.state.String()),
	)
	l.emit(ctx, core.EventAgentRejected, "", map[string]any{
		"goal":   ev.Goal,
		"state":  l.state.String(),
		"reason": err.Message,
	})
	deliver(ev.Reply, Result{Goal: ev.Goal, Err: err})
}

func (l *Loop) setState(ctx context.Context, next State) {
	l.mu.Lock()
	prev := l.state
	l.state = next
	l.mu.Unlock()

	var taskID string
	if l.current != nil {
		taskID = l.current.task.ID
	}
	l.logger.DebugContext(ctx, "agent state changed",
		slog.String("from", prev.String()),
		slog.String("to", next.String()),
	)
	l.emit(ctx, core.EventAgentState, taskID, map[string]any{
		"from":   prev.Status.String(),
		"to":     next.Status.String(),
		"reason": next.Reason,
	})
}

func (l *Loop) emit(ctx context.Context, typ core.EventType, taskID string, payload map[string]any) {
	ev := core.NewEvent(typ, eventSource, payload)
	ev.TaskID = taskID
	if runID, ok := core.RunID(ctx); ok {
		ev.RunID = runID
	}
	l.emitter.Emit(ctx, ev)
}

// deliver never blocks the loop; a reply channel without room is skipped.
func deliver(reply chan<- Result, res Result) {
	if reply == nil {
		return
	}
	select {
	case reply <- res:
	default:
	}
}
