// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the event loop that sequences externally
// triggered plan runs.
//
// The loop is a single-consumer state machine:
//
//	Idle --InputReceived--> WaitingForTask --dispatch--> Executing
//	Executing|WaitingForTask --TaskCompleted{true}--> Idle
//	Executing|WaitingForTask --TaskCompleted{false}--> Error(reason)
//	Error --Reset--> Idle
//
// Input received while in Error is rejected and the caller is told so
// through the event's Reply channel.
package agent

import (
	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
)

// Status enumerates the loop states.
type Status int

const (
	StatusIdle Status = iota
	StatusWaitingForTask
	StatusExecuting
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusWaitingForTask:
		return "waiting_for_task"
	case StatusExecuting:
		return "executing"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the loop state. Reason is set only for StatusError.
type State struct {
	Status Status
	Reason string
}

func (s State) String() string {
	if s.Status == StatusError {
		return "error(" + s.Reason + ")"
	}
	return s.Status.String()
}

// Event is anything the loop consumes.
type Event interface {
	event()
}

// InputReceived asks the loop to plan and run Goal. Reply, when non-nil,
// receives exactly one Result and must be buffered.
type InputReceived struct {
	Goal  string
	Reply chan<- Result
}

// TaskCompleted reports the end of a plan run.
type TaskCompleted struct {
	TaskID  string
	Success bool
	Reason  string
}

// SystemAlert is logged and re-emitted; it does not change state.
type SystemAlert struct {
	Message string
}

// ExternalMessage is logged and re-emitted; it does not change state.
type ExternalMessage struct {
	Data string
}

// Reset moves the loop from Error back to Idle.
type Reset struct{}

// taskDispatched marks the moment the plan run starts executing.
type taskDispatched struct {
	TaskID string
}

func (InputReceived) event()   {}
func (TaskCompleted) event()   {}
func (SystemAlert) event()     {}
func (ExternalMessage) event() {}
func (Reset) event()           {}
func (taskDispatched) event()  {}

// Result is delivered on InputReceived.Reply.
type Result struct {
	TaskID  string
	Goal    string
	Success bool
	Outputs core.ExecutionContext
	// Err is set when the input was refused or the run failed.
	Err error
}

// ReasonUnrecognizedGoal is the failure reason for goals no plan matches.
const ReasonUnrecognizedGoal = "unrecognized goal"

var (
	// ErrRejected is returned for input received while the loop is in Error.
	ErrRejected = errors.New(errors.CodeExecutionFailure, "input rejected: agent is in error state", nil)
	// ErrBusy is returned for input received while a run is in flight.
	ErrBusy = errors.New(errors.CodeExecutionFailure, "input rejected: a task is already running", nil)
)
