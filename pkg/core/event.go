package core

import (
	"context"
	"time"
)

// EventType identifies a semantic event emitted by the executor or the agent loop.
type EventType string

const (
	EventPlanStarted       EventType = "plan.run.started"
	EventPlanCompleted     EventType = "plan.run.completed"
	EventStepStarted       EventType = "plan.step.started"
	EventStepCompleted     EventType = "plan.step.completed"
	EventInvocationRetried EventType = "task.invocation.retried"
	EventAgentState        EventType = "agent.state.changed"
	EventAgentRejected     EventType = "agent.input.rejected"
	EventAgentAlert        EventType = "agent.alert"
	EventAgentMessage      EventType = "agent.message"
)

// Event captures a semantic logging event.
type Event struct {
	Type      EventType
	Source    string
	RunID     string
	TaskID    string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events. It is the only channel through which
// the engine reports what it does; hosts decide where events go.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// EmitterFunc adapts a function into an EventEmitter.
type EmitterFunc func(ctx context.Context, event Event)

// Emit implements EventEmitter.
func (f EmitterFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// MultiEmitter fans events out to several emitters.
type MultiEmitter []EventEmitter

// Emit implements EventEmitter.
func (m MultiEmitter) Emit(ctx context.Context, event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, event)
		}
	}
}

// NewEvent builds a default event with timestamp.
func NewEvent(eventType EventType, source string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
