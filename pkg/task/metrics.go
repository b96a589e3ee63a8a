// SPDX-License-Identifier: Apache-2.0
package task

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/conductor/pkg/core"
)

// executorMetrics records invocation counts, durations and retries. Any
// instrument that fails to register is skipped.
type executorMetrics struct {
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
	retries     metric.Int64Counter
}

func newExecutorMetrics(logger *slog.Logger) *executorMetrics {
	meter := otel.Meter("conductor/task")
	m := &executorMetrics{}
	var err error

	m.invocations, err = meter.Int64Counter(
		"conductor.task.invocations",
		metric.WithDescription("Primitive invocations by kind and outcome"),
	)
	if err != nil {
		logger.Warn("task metrics: invocations counter", slog.String("error", err.Error()))
	}
	m.duration, err = meter.Float64Histogram(
		"conductor.task.duration",
		metric.WithDescription("Primitive invocation duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		logger.Warn("task metrics: duration histogram", slog.String("error", err.Error()))
	}
	m.retries, err = meter.Int64Counter(
		"conductor.task.retries",
		metric.WithDescription("Retries of transient invocation failures"),
	)
	if err != nil {
		logger.Warn("task metrics: retries counter", slog.String("error", err.Error()))
	}
	return m
}

func (m *executorMetrics) record(ctx context.Context, kind Kind, out core.ToolOutput, d time.Duration) {
	outcome := "success"
	if !out.Success {
		outcome = string(out.Code)
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("outcome", outcome),
	)
	if m.invocations != nil {
		m.invocations.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(d.Microseconds())/1000, attrs)
	}
}

func (m *executorMetrics) retried(ctx context.Context, kind Kind) {
	if m.retries != nil {
		m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
	}
}
