package planner

import (
	"context"
	"sync"
	"time"

	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/value"
)

// Audit statuses recorded per step.
const (
	AuditStarted   = "started"
	AuditCompleted = "completed"
	AuditFailed    = "failed"
)

// AuditEvent records one step transition of a plan run.
type AuditEvent struct {
	PlanID     string
	RunID      string
	StepIndex  int
	ToolName   string
	OutputKey  string
	Status     string
	Result     value.Value
	Code       errors.Code
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// AuditStore persists plan audit events.
type AuditStore interface {
	Record(ctx context.Context, event AuditEvent) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// AuditFilter limits audit event queries.
type AuditFilter struct {
	PlanID    string
	RunID     string
	OutputKey string
	Status    string
	Limit     int
}

func (f AuditFilter) matches(ev AuditEvent) bool {
	if f.PlanID != "" && ev.PlanID != f.PlanID {
		return false
	}
	if f.RunID != "" && ev.RunID != f.RunID {
		return false
	}
	if f.OutputKey != "" && ev.OutputKey != f.OutputKey {
		return false
	}
	if f.Status != "" && ev.Status != f.Status {
		return false
	}
	return true
}

// MemoryAuditStore keeps audit events in memory.
type MemoryAuditStore struct {
	mu     sync.Mutex
	events []AuditEvent
}

// NewMemoryAuditStore returns an in-memory audit store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

// Record appends an audit event.
func (s *MemoryAuditStore) Record(_ context.Context, event AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns filtered audit events in recording order.
func (s *MemoryAuditStore) List(_ context.Context, filter AuditFilter) ([]AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, 0, len(s.events))
	for _, ev := range s.events {
		if !filter.matches(ev) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// normalizeAuditTime ensures timestamps are in UTC.
func normalizeAuditTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
