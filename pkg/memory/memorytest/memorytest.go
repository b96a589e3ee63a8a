// Package memorytest holds the behavior every memory.Store must share.
package memorytest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jllopis/conductor/pkg/memory"
)

// Run exercises a fresh store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) memory.Store) {
	t.Helper()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := context.Background()

	t.Run("ReadRecentOrdering", func(t *testing.T) {
		store := newStore(t)
		mustWrite(t, store, memory.Entry{Key: "t1", Value: "one", Timestamp: base})
		mustWrite(t, store, memory.Entry{Key: "t3", Value: "three", Timestamp: base.Add(2 * time.Second)})
		mustWrite(t, store, memory.Entry{Key: "t2", Value: "two", Timestamp: base.Add(time.Second)})

		got, err := store.ReadRecent(ctx, 2)
		if err != nil {
			t.Fatalf("read recent: %v", err)
		}
		assertKeys(t, got, "t3", "t2")

		for _, limit := range []int{0, -1} {
			none, err := store.ReadRecent(ctx, limit)
			if err != nil {
				t.Fatalf("read recent %d: %v", limit, err)
			}
			if len(none) != 0 {
				t.Fatalf("ReadRecent(%d) returned %d entries, want 0", limit, len(none))
			}
		}

		all, err := memory.ReadAll(ctx, store)
		if err != nil {
			t.Fatalf("read all: %v", err)
		}
		assertKeys(t, all, "t3", "t2", "t1")
	})

	t.Run("TiesBrokenByKey", func(t *testing.T) {
		store := newStore(t)
		for _, key := range []string{"b", "c", "a"} {
			mustWrite(t, store, memory.Entry{Key: key, Value: key, Timestamp: base})
		}
		got, err := store.ReadRecent(ctx, 10)
		if err != nil {
			t.Fatalf("read recent: %v", err)
		}
		assertKeys(t, got, "a", "b", "c")
	})

	t.Run("SearchByTagIsExact", func(t *testing.T) {
		store := newStore(t)
		mustWrite(t, store, memory.Entry{Key: "s1", Value: "a", Tags: []string{"summary", "task-1"}, Timestamp: base})
		mustWrite(t, store, memory.Entry{Key: "s2", Value: "b", Tags: []string{"summaries"}, Timestamp: base.Add(time.Second)})
		mustWrite(t, store, memory.Entry{Key: "s3", Value: "c", Tags: []string{"summary"}, Timestamp: base.Add(2 * time.Second)})
		mustWrite(t, store, memory.Entry{Key: "s4", Value: "d", Tags: []string{"sum"}, Timestamp: base.Add(3 * time.Second)})

		got, err := store.SearchByTag(ctx, "summary")
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		assertKeys(t, got, "s3", "s1")
		if !got[1].HasTag("task-1") {
			t.Fatalf("expected tags to be returned, got %v", got[1].Tags)
		}

		none, err := store.SearchByTag(ctx, "missing")
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(none) != 0 {
			t.Fatalf("expected no entries, got %v", none)
		}
	})

	t.Run("WriteReplacesByKey", func(t *testing.T) {
		store := newStore(t)
		mustWrite(t, store, memory.Entry{Key: "k", Value: "old", Tags: []string{"summary"}, Timestamp: base.Add(time.Hour)})
		mustWrite(t, store, memory.Entry{Key: "other", Value: "x", Timestamp: base.Add(time.Minute)})
		mustWrite(t, store, memory.Entry{Key: "k", Value: "new", Tags: []string{"fresh"}, Kind: memory.KindLongTerm, Timestamp: base})

		got, ok, err := store.ReadByKey(ctx, "k")
		if err != nil || !ok {
			t.Fatalf("read by key: ok=%v err=%v", ok, err)
		}
		if got.Value != "new" || got.Kind != memory.KindLongTerm || !got.Timestamp.Equal(base) {
			t.Fatalf("entry not replaced: %+v", got)
		}
		if got.HasTag("summary") || !got.HasTag("fresh") {
			t.Fatalf("tags not replaced: %v", got.Tags)
		}
		tagged, err := store.SearchByTag(ctx, "summary")
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(tagged) != 0 {
			t.Fatalf("stale tag still indexed: %v", tagged)
		}
		recent, err := memory.ReadAll(ctx, store)
		if err != nil {
			t.Fatalf("read recent: %v", err)
		}
		assertKeys(t, recent, "other", "k")
	})

	t.Run("ReadByKeyMissing", func(t *testing.T) {
		store := newStore(t)
		if _, ok, err := store.ReadByKey(ctx, "nope"); err != nil || ok {
			t.Fatalf("expected missing entry, ok=%v err=%v", ok, err)
		}
		recent, err := store.ReadRecent(ctx, 5)
		if err != nil || len(recent) != 0 {
			t.Fatalf("expected empty store, got %v %v", recent, err)
		}
	})

	t.Run("ZeroTimestampDefaultsToNow", func(t *testing.T) {
		store := newStore(t)
		before := time.Now().Add(-time.Second)
		mustWrite(t, store, memory.Entry{Key: "now", Value: "v"})
		got, ok, err := store.ReadByKey(ctx, "now")
		if err != nil || !ok {
			t.Fatalf("read: ok=%v err=%v", ok, err)
		}
		if got.Timestamp.Before(before) {
			t.Fatalf("timestamp not set: %v", got.Timestamp)
		}
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		store := newStore(t)
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 10; i++ {
					key := fmt.Sprintf("w%d-%d", w, i)
					if err := store.Write(ctx, memory.Entry{Key: key, Value: key, Tags: []string{"load"}}); err != nil {
						t.Errorf("write %s: %v", key, err)
						return
					}
					if _, err := store.ReadRecent(ctx, 3); err != nil {
						t.Errorf("read recent: %v", err)
						return
					}
				}
			}(w)
		}
		wg.Wait()
		got, err := store.SearchByTag(ctx, "load")
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(got) != 40 {
			t.Fatalf("expected 40 entries, got %d", len(got))
		}
	})
}

func mustWrite(t *testing.T, store memory.Store, entry memory.Entry) {
	t.Helper()
	if err := store.Write(context.Background(), entry); err != nil {
		t.Fatalf("write %s: %v", entry.Key, err)
	}
}

func assertKeys(t *testing.T, entries []memory.Entry, keys ...string) {
	t.Helper()
	if len(entries) != len(keys) {
		t.Fatalf("expected keys %v, got %d entries: %+v", keys, len(entries), entries)
	}
	for i, key := range keys {
		if entries[i].Key != key {
			got := make([]string, len(entries))
			for j, e := range entries {
				got[j] = e.Key
			}
			t.Fatalf("expected keys %v, got %v", keys, got)
		}
	}
}
