package memory

import (
	"context"
	"sync"
)

// InMemory is an in-process Store.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]Entry)}
}

// Write implements Store. It never fails.
func (m *InMemory) Write(_ context.Context, entry Entry) error {
	entry = normalize(entry)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key] = entry
	return nil
}

// ReadByKey implements Store.
func (m *InMemory) ReadByKey(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	return copyEntry(entry), ok, nil
}

// ReadRecent implements Store.
func (m *InMemory) ReadRecent(_ context.Context, limit int) ([]Entry, error) {
	return Truncate(m.snapshot(func(Entry) bool { return true }), limit), nil
}

// SearchByTag implements Store.
func (m *InMemory) SearchByTag(_ context.Context, tag string) ([]Entry, error) {
	return m.snapshot(func(e Entry) bool { return e.HasTag(tag) }), nil
}

func (m *InMemory) snapshot(match func(Entry) bool) []Entry {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if match(e) {
			out = append(out, copyEntry(e))
		}
	}
	m.mu.RUnlock()
	SortRecent(out)
	return out
}

func copyEntry(e Entry) Entry {
	if e.Tags != nil {
		e.Tags = append([]string(nil), e.Tags...)
	}
	return e
}
