package core

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus describes the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task is one externally triggered plan run tracked by the agent loop.
type Task struct {
	ID         string
	Goal       string
	Status     TaskStatus
	Error      string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewTask creates a task with a generated ID.
func NewTask(goal string) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Goal:      goal,
		Status:    TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Start marks the task as running.
func (t *Task) Start() {
	t.Status = TaskStatusRunning
	t.StartedAt = time.Now().UTC()
}

// Complete marks the task as completed.
func (t *Task) Complete() {
	t.Status = TaskStatusCompleted
	t.FinishedAt = time.Now().UTC()
}

// Fail marks the task as failed with a reason.
func (t *Task) Fail(reason string) {
	t.Status = TaskStatusFailed
	t.Error = reason
	t.FinishedAt = time.Now().UTC()
}

// Done reports whether the task reached a terminal state.
func (t *Task) Done() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}
