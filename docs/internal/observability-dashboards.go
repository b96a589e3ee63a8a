// SPDX-License-Identifier: Apache-2.0

// Package internal documents dashboard templates for the metrics and spans
// conductor exports through OpenTelemetry (telemetry.exporter: stdout or
// otlp). It holds no code.
//
// DASHBOARD: Plan runs
//
//	conductor.plan.runs{conductor.success}
//	  Plan executions by outcome. Display: stacked bar, rate 5m.
//	  Alert: success=false rate > 20% of runs over 10m.
//
//	conductor.plan.steps{conductor.step.tool, conductor.success, conductor.error.code}
//	  Step outcomes per tool. Display: table sorted by failures.
//	  Insight: TOOL_NOT_FOUND usually means an MCP server or OpenAPI
//	  connector failed to load.
//
// DASHBOARD: Primitive invocations
//
//	conductor.task.invocations{conductor.invocation.kind, conductor.success}
//	conductor.task.duration{conductor.invocation.kind} (histogram, ms)
//	  p50/p95 per kind. Alert: p95 http > executor.timeout * 0.8 for 5m.
//
//	conductor.task.retries{conductor.invocation.kind, conductor.error.code}
//	  Retries of TIMEOUT and TRANSPORT_ERROR. A high ratio of retries to
//	  invocations means executor.backoff or the breaker threshold needs
//	  tuning.
//
// DASHBOARD: Errors
//
//	conductor.errors.total{conductor.error.code, conductor.component}
//	  Failed steps by code. Display: heatmap code x component.
//	  Alert: INTERNAL_ERROR or MEMORY_ERROR > 0 for 5m (severity critical).
//
// DASHBOARD: Agent
//
//	conductor.agent.tasks{conductor.success}
//	conductor.agent.rejections
//	  Goals accepted versus rejected (empty input, busy, unrecognized).
//
// TRACES
//
//	Planner.Run   conductor.plan.id, conductor.plan.goal, conductor.run.id
//	  Planner.Step conductor.step.index, conductor.step.tool
//	    Task.Invoke  conductor.invocation.kind, conductor.invocation.target,
//	                 conductor.invocation.attempts
//	Agent.Task    conductor.task.id, conductor.task.goal
//
// Logs carry trace_id, span_id, run_id and task_id, so a failed step in
// the audit trail (conductor audit -run ID) can be joined to its trace.
//
// EXAMPLE QUERIES (Prometheus naming after OTLP export)
//
//	sum by (conductor_step_tool) (rate(conductor_plan_steps_total{conductor_success="false"}[5m]))
//	histogram_quantile(0.95, sum by (le, conductor_invocation_kind) (rate(conductor_task_duration_milliseconds_bucket[5m])))
//	sum(rate(conductor_task_retries_total[5m])) / sum(rate(conductor_task_invocations_total[5m]))
package internal
