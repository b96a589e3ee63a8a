// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry setup, trace-aware logging and
// the span attributes shared by the plan executor, task executor and agent
// loop.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span and metric attribute keys.
const (
	AttrPlanID    = "conductor.plan.id"
	AttrPlanGoal  = "conductor.plan.goal"
	AttrPlanSteps = "conductor.plan.steps"
	AttrPlanOK    = "conductor.plan.success"
	AttrRunID     = "conductor.run.id"

	AttrStepIndex     = "conductor.step.index"
	AttrStepTool      = "conductor.step.tool"
	AttrStepOutputKey = "conductor.step.output_key"

	AttrInvocationKind   = "conductor.invocation.kind"
	AttrInvocationTarget = "conductor.invocation.target"
	AttrAttempts         = "conductor.invocation.attempts"

	AttrTaskID   = "conductor.task.id"
	AttrTaskGoal = "conductor.task.goal"

	AttrErrorCode = "conductor.error.code"
	AttrSuccess   = "conductor.success"
	AttrComponent = "conductor.component"
	AttrEventType = "conductor.event.type"
)

// PlanAttributes describes a plan run.
func PlanAttributes(planID, goal, runID string, steps int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrPlanID, planID),
		attribute.String(AttrRunID, runID),
		attribute.Int(AttrPlanSteps, steps),
	}
	if goal != "" {
		attrs = append(attrs, attribute.String(AttrPlanGoal, truncate(goal, 256)))
	}
	return attrs
}

// StepAttributes describes one plan step.
func StepAttributes(index int, tool, outputKey string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrStepIndex, index),
		attribute.String(AttrStepTool, tool),
		attribute.String(AttrStepOutputKey, outputKey),
	}
}

// InvocationAttributes describes a primitive invocation.
func InvocationAttributes(kind, target string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrInvocationKind, kind),
		attribute.String(AttrInvocationTarget, truncate(target, 256)),
	}
}

// TaskAttributes describes an agent task.
func TaskAttributes(taskID, goal string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTaskID, taskID),
		attribute.String(AttrTaskGoal, truncate(goal, 256)),
	}
}

// OutcomeAttributes records success and, for failures, the error code.
func OutcomeAttributes(success bool, code string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Bool(AttrSuccess, success)}
	if !success && code != "" {
		attrs = append(attrs, attribute.String(AttrErrorCode, code))
	}
	return attrs
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
