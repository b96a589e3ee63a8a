// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory stores keyed, tagged results across plan runs.
//
// Every Store replaces entries by key on Write and orders listings by
// descending timestamp, breaking ties by ascending key.
package memory

import (
	"context"
	"math"
	"sort"
	"time"
)

// Entry kinds. The distinction is a label only; all kinds share one store.
const (
	KindWorking  = "working"
	KindLongTerm = "long_term"
)

// Entry is one remembered value.
type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Tags      []string  `json:"tags,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HasTag reports whether tag is one of the entry tags, compared exactly.
func (e Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Store is a concurrency-safe memory backend.
type Store interface {
	// Write inserts or fully replaces the entry with the same key.
	Write(ctx context.Context, entry Entry) error
	ReadByKey(ctx context.Context, key string) (Entry, bool, error)
	// ReadRecent returns at most limit entries, newest first. A limit <= 0
	// returns none; use ReadAll for every entry.
	ReadRecent(ctx context.Context, limit int) ([]Entry, error)
	// SearchByTag returns the entries carrying tag, newest first.
	SearchByTag(ctx context.Context, tag string) ([]Entry, error)
}

// normalize fills the timestamp and copies the tags so callers cannot
// mutate a stored entry.
func normalize(entry Entry) Entry {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Timestamp = entry.Timestamp.UTC()
	entry.Tags = dedupeTags(entry.Tags)
	return entry
}

func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// SortRecent orders entries newest first, ties by key.
func SortRecent(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.Key < b.Key
	})
}

// Truncate returns the first limit entries. Negative limits count as 0.
func Truncate(entries []Entry, limit int) []Entry {
	if limit <= 0 {
		return entries[:0]
	}
	if len(entries) > limit {
		return entries[:limit]
	}
	return entries
}

// ReadAll returns every entry of store, newest first.
func ReadAll(ctx context.Context, store Store) ([]Entry, error) {
	return store.ReadRecent(ctx, math.MaxInt)
}
