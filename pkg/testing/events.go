// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"sync"
	"time"

	"github.com/jllopis/conductor/pkg/core"
)

// EventCollector is a core.EventEmitter that keeps every event it receives.
type EventCollector struct {
	mu      sync.RWMutex
	events  []core.Event
	changed chan struct{}
}

// NewEventCollector creates a new event collector.
func NewEventCollector() *EventCollector {
	return &EventCollector{
		events:  make([]core.Event, 0),
		changed: make(chan struct{}),
	}
}

// Emit implements core.EventEmitter.
func (c *EventCollector) Emit(_ context.Context, event core.Event) {
	c.Collect(event)
}

// Collect adds an event to the collector.
func (c *EventCollector) Collect(event core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	close(c.changed)
	c.changed = make(chan struct{})
}

// Events returns all collected events.
func (c *EventCollector) Events() []core.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]core.Event, len(c.events))
	copy(result, c.events)
	return result
}

// EventTypes returns the types of all collected events.
func (c *EventCollector) EventTypes() []core.EventType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	types := make([]core.EventType, len(c.events))
	for i, ev := range c.events {
		types[i] = ev.Type
	}
	return types
}

// OfType returns the collected events of the given type.
func (c *EventCollector) OfType(eventType core.EventType) []core.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []core.Event
	for _, ev := range c.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// HasEvent checks if an event of the given type was collected.
func (c *EventCollector) HasEvent(eventType core.EventType) bool {
	return len(c.OfType(eventType)) > 0
}

// WaitFor blocks until an event satisfying match is collected or timeout
// elapses.
func (c *EventCollector) WaitFor(match func(core.Event) bool, timeout time.Duration) (core.Event, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	seen := 0
	for {
		c.mu.RLock()
		if seen > len(c.events) {
			seen = 0
		}
		pending := c.events[seen:]
		changed := c.changed
		c.mu.RUnlock()
		for _, ev := range pending {
			if match(ev) {
				return ev, true
			}
		}
		seen += len(pending)
		select {
		case <-changed:
		case <-deadline.C:
			return core.Event{}, false
		}
	}
}

// Count returns the number of collected events.
func (c *EventCollector) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Reset clears all collected events.
func (c *EventCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}

var _ core.EventEmitter = (*EventCollector)(nil)
