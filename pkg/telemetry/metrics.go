// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/conductor/pkg/core"
)

// MetricsEmitter turns plan and agent events into counters. It is a
// core.EventEmitter so it can be combined with LogEmitter in a
// core.MultiEmitter.
type MetricsEmitter struct {
	once sync.Once
	err  error

	runs       metric.Int64Counter
	steps      metric.Int64Counter
	errorCount metric.Int64Counter
	rejections metric.Int64Counter
}

// NewMetricsEmitter creates the instruments on the global meter provider.
func NewMetricsEmitter() (*MetricsEmitter, error) {
	m := &MetricsEmitter{}
	m.once.Do(m.init)
	return m, m.err
}

func (m *MetricsEmitter) init() {
	meter := otel.Meter("conductor/planner")
	if m.runs, m.err = meter.Int64Counter(
		"conductor.plan.runs",
		metric.WithDescription("Plan runs by outcome"),
	); m.err != nil {
		return
	}
	if m.steps, m.err = meter.Int64Counter(
		"conductor.plan.steps",
		metric.WithDescription("Plan steps by tool and outcome"),
	); m.err != nil {
		return
	}
	if m.errorCount, m.err = meter.Int64Counter(
		"conductor.errors.total",
		metric.WithDescription("Failed step outputs by error code"),
	); m.err != nil {
		return
	}
	m.rejections, m.err = meter.Int64Counter(
		"conductor.agent.rejections",
		metric.WithDescription("Inputs rejected by the agent loop"),
	)
}

// Emit implements core.EventEmitter.
func (m *MetricsEmitter) Emit(ctx context.Context, event core.Event) {
	m.once.Do(m.init)
	if m.err != nil {
		return
	}
	switch event.Type {
	case core.EventPlanCompleted:
		ok, _ := event.Payload["success"].(bool)
		m.runs.Add(ctx, 1, metric.WithAttributes(attribute.Bool(AttrSuccess, ok)))
	case core.EventStepCompleted:
		ok, _ := event.Payload["success"].(bool)
		tool, _ := event.Payload["tool"].(string)
		code, _ := event.Payload["code"].(string)
		attrs := append(OutcomeAttributes(ok, code), attribute.String(AttrStepTool, tool))
		m.steps.Add(ctx, 1, metric.WithAttributes(attrs...))
		if !ok {
			m.errorCount.Add(ctx, 1, metric.WithAttributes(
				attribute.String(AttrErrorCode, code),
				attribute.String(AttrComponent, event.Source),
			))
		}
	case core.EventAgentRejected:
		m.rejections.Add(ctx, 1)
	}
}

var _ core.EventEmitter = (*MetricsEmitter)(nil)
