package tools

import (
	"context"
	"math"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/memory"
	"github.com/jllopis/conductor/pkg/value"
)

// Remember writes an entry to store.
//
// Arguments: key (required), value (rendered as text), tags (string array).
func Remember(store memory.Store) core.Tool {
	return core.NewTool("remember", "Stores a value in memory under a key.", func(ctx context.Context, args value.Value) core.ToolOutput {
		key, ok := args.GetString("key")
		if !ok || key == "" {
			return core.Failed(errors.CodeInvalidArguments, "remember: key is required")
		}
		text, _ := textArg(args, "value")
		var tags []string
		if raw, ok := args.Get("tags"); ok && !raw.IsNull() {
			if raw.Kind() != value.KindArray {
				return core.Failedf(errors.CodeInvalidArguments, "remember: tags must be an array, got %s", raw.Kind())
			}
			for _, item := range raw.Items() {
				tag, ok := item.AsString()
				if !ok {
					return core.Failed(errors.CodeInvalidArguments, "remember: tags must be strings")
				}
				tags = append(tags, tag)
			}
		}
		if err := store.Write(ctx, memory.Entry{Key: key, Value: text, Tags: tags, Kind: memory.KindWorking}); err != nil {
			return core.FromError(err)
		}
		return core.Succeeded(value.String(key))
	})
}

// Recall reads from store. With key it returns that entry's value; with tag
// the matching entries; otherwise the limit most recent entries.
func Recall(store memory.Store) core.Tool {
	return core.NewTool("recall", "Reads values from memory by key, tag or recency.", func(ctx context.Context, args value.Value) core.ToolOutput {
		if key, ok := args.GetString("key"); ok && key != "" {
			entry, found, err := store.ReadByKey(ctx, key)
			if err != nil {
				return core.FromError(err)
			}
			if !found {
				return core.Failedf(errors.CodeExecutionFailure, "recall: no entry for key %q", key)
			}
			return core.Succeeded(value.String(entry.Value))
		}

		var (
			entries []memory.Entry
			err     error
		)
		if tag, ok := args.GetString("tag"); ok && tag != "" {
			entries, err = store.SearchByTag(ctx, tag)
		} else {
			limit, out := recallLimit(args)
			if !out.Success {
				return out
			}
			entries, err = store.ReadRecent(ctx, limit)
		}
		if err != nil {
			return core.FromError(err)
		}
		items := make([]value.Value, len(entries))
		for i, e := range entries {
			items[i] = value.Object(map[string]value.Value{
				"key":   value.String(e.Key),
				"value": value.String(e.Value),
			})
		}
		return core.Succeeded(value.Array(items...))
	})
}

// maxRecallLimit bounds the recency listing of a single recall.
const maxRecallLimit = 1000

// recallLimit reads the optional limit argument: a whole number between 0
// and maxRecallLimit, defaulting to 10.
func recallLimit(args value.Value) (int, core.ToolOutput) {
	raw, ok := args.Get("limit")
	if !ok || raw.IsNull() {
		return 10, core.Succeeded(value.Null())
	}
	f, ok := raw.AsNumber()
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 0 || f > maxRecallLimit {
		return 0, core.Failedf(errors.CodeInvalidArguments, "recall: limit must be a whole number between 0 and %d, got %s", maxRecallLimit, raw)
	}
	return int(f), core.Succeeded(value.Null())
}
