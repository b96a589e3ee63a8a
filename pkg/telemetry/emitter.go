package telemetry

import (
	"context"
	"log/slog"
	"sort"

	"github.com/jllopis/conductor/pkg/core"
)

// LogEmitter records events as structured log lines.
type LogEmitter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogEmitter logs events through logger at level. A nil logger means
// slog.Default().
func NewLogEmitter(logger *slog.Logger, level slog.Level) *LogEmitter {
	return &LogEmitter{logger: logger, level: level}
}

// Emit implements core.EventEmitter.
func (e *LogEmitter) Emit(ctx context.Context, event core.Event) {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}
	if !logger.Enabled(ctx, e.level) {
		return
	}
	attrs := []slog.Attr{
		slog.String("event", string(event.Type)),
		slog.String("source", event.Source),
	}
	if event.RunID != "" {
		attrs = append(attrs, slog.String("run_id", event.RunID))
	}
	if event.TaskID != "" {
		attrs = append(attrs, slog.String("task_id", event.TaskID))
	}
	if len(event.Payload) > 0 {
		keys := make([]string, 0, len(event.Payload))
		for k := range event.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		payload := make([]any, 0, len(keys))
		for _, k := range keys {
			payload = append(payload, slog.Any(k, event.Payload[k]))
		}
		attrs = append(attrs, slog.Group("payload", payload...))
	}
	logger.LogAttrs(ctx, e.level, "event", attrs...)
}

var _ core.EventEmitter = (*LogEmitter)(nil)
