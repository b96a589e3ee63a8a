// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/resilience"
	"github.com/jllopis/conductor/pkg/telemetry"
	"github.com/jllopis/conductor/pkg/value"
)

// DefaultTimeout bounds every primitive invocation unless configured otherwise.
const DefaultTimeout = 5 * time.Second

// Version is reported by the "version" internal operation.
var Version = "dev"

// InternalOp is a built-in operation reachable through Internal invocations.
type InternalOp func(ctx context.Context) (string, error)

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout sets the per-attempt timeout. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithRetryPolicy replaces the default retry policy used by Run.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Executor) {
		e.policy = p
	}
}

// WithHTTPClient sets the client used for HTTP invocations.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithInternalOp registers or overrides an internal operation.
func WithInternalOp(name string, op InternalOp) Option {
	return func(e *Executor) {
		e.internal[name] = op
	}
}

// WithCircuitBreaker enables a breaker per invocation target.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(e *Executor) {
		e.breakers = resilience.NewBreakerSet(cfg)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEventEmitter sets the receiver of retry events.
func WithEventEmitter(em core.EventEmitter) Option {
	return func(e *Executor) {
		if em != nil {
			e.emitter = em
		}
	}
}

// Executor runs primitive invocations. It is safe for concurrent use.
type Executor struct {
	timeout  time.Duration
	policy   RetryPolicy
	client   *http.Client
	internal map[string]InternalOp
	breakers *resilience.BreakerSet
	logger   *slog.Logger
	emitter  core.EventEmitter
	tracer   trace.Tracer
	metrics  *executorMetrics
}

// NewExecutor creates an executor with a 5s timeout and the default retry policy.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		timeout:  DefaultTimeout,
		policy:   DefaultRetryPolicy(),
		client:   &http.Client{},
		internal: defaultInternalOps(),
		logger:   slog.Default(),
		emitter:  core.NoopEventEmitter{},
		tracer:   otel.Tracer("conductor/task"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics = newExecutorMetrics(e.logger)
	return e
}

func defaultInternalOps() map[string]InternalOp {
	return map[string]InternalOp{
		"ping": func(context.Context) (string, error) { return "pong", nil },
		"time": func(context.Context) (string, error) { return time.Now().UTC().Format(time.RFC3339), nil },
		"version": func(context.Context) (string, error) {
			return Version, nil
		},
	}
}

// Run performs inv under the executor's retry policy.
func (e *Executor) Run(ctx context.Context, inv Invocation) core.ToolOutput {
	policy := e.policy
	user := policy.OnRetry
	policy.OnRetry = func(attempt int, last core.ToolOutput) {
		e.metrics.retried(ctx, inv.Kind)
		e.logger.WarnContext(ctx, "retrying invocation",
			slog.String("target", inv.Target()),
			slog.Int("attempt", attempt),
			slog.String("code", string(last.Code)),
			slog.String("message", last.Message),
		)
		ev := core.NewEvent(core.EventInvocationRetried, "task.executor", map[string]any{
			"target":  inv.Target(),
			"attempt": attempt,
			"code":    string(last.Code),
			"message": last.Message,
		})
		if id, ok := core.RunID(ctx); ok {
			ev.RunID = id
		}
		e.emitter.Emit(ctx, ev)
		if user != nil {
			user(attempt, last)
		}
	}
	return policy.Retry(ctx, inv, e)
}

// Invoke performs a single attempt of inv.
func (e *Executor) Invoke(ctx context.Context, inv Invocation) core.ToolOutput {
	if err := inv.Validate(); err != nil {
		return core.FromError(err)
	}

	ctx, span := e.tracer.Start(ctx, "Task.Invoke",
		trace.WithAttributes(telemetry.InvocationAttributes(string(inv.Kind), inv.Target())...),
	)
	defer span.End()
	start := time.Now()

	var breaker *resilience.CircuitBreaker
	if e.breakers != nil {
		breaker = e.breakers.Get(inv.Target())
		if err := breaker.Allow(); err != nil {
			out := core.FromError(err)
			e.finish(ctx, span, inv, out, start)
			return out
		}
	}

	out, err := resilience.WithTimeout(ctx, resilience.TimeoutConfig{Duration: e.timeout},
		func(ctx context.Context) (core.ToolOutput, error) {
			return e.dispatch(ctx, inv)
		})
	if err != nil {
		out = core.FromError(err)
	}

	if breaker != nil {
		breaker.Record(out.Retryable())
	}
	e.finish(ctx, span, inv, out, start)
	return out
}

func (e *Executor) finish(ctx context.Context, span trace.Span, inv Invocation, out core.ToolOutput, start time.Time) {
	e.metrics.record(ctx, inv.Kind, out, time.Since(start))
	span.SetAttributes(telemetry.OutcomeAttributes(out.Success, string(out.Code))...)
	if !out.Success {
		span.SetStatus(codes.Error, out.Message)
	}
	e.logger.DebugContext(ctx, "invocation finished",
		slog.String("target", inv.Target()),
		slog.Bool("success", out.Success),
		slog.Duration("duration", time.Since(start)),
	)
}

// dispatch returns an error only when the attempt could not produce an
// output: transport failures and aborted contexts.
func (e *Executor) dispatch(ctx context.Context, inv Invocation) (core.ToolOutput, error) {
	switch inv.Kind {
	case KindShell:
		return e.runShell(ctx, inv)
	case KindHTTP:
		return e.runHTTP(ctx, inv)
	default:
		return e.runInternal(ctx, inv)
	}
}

func (e *Executor) runShell(ctx context.Context, inv Invocation) (core.ToolOutput, error) {
	cmd := exec.CommandContext(ctx, inv.Command, inv.Args...)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return core.Succeeded(value.String(strings.TrimSpace(stdout.String()))), nil
	}
	if ctx.Err() != nil {
		return core.ToolOutput{}, ctx.Err()
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = fmt.Sprintf("command failed: %v", exitErr)
		}
		return core.FailedWith(value.String(stderr.String()), errors.CodeExecutionFailure, msg), nil
	}
	return core.ToolOutput{}, errors.New(errors.CodeTransportError, "execution failed", err).
		WithContext("command", inv.Command)
}

func (e *Executor) runHTTP(ctx context.Context, inv Invocation) (core.ToolOutput, error) {
	var body io.Reader
	if inv.Payload != "" || inv.HTTPMethod() == http.MethodPost {
		body = strings.NewReader(inv.Payload)
	}
	req, err := http.NewRequestWithContext(ctx, inv.HTTPMethod(), inv.URL, body)
	if err != nil {
		return core.Failedf(errors.CodeInvalidArguments, "invalid request: %v", err), nil
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType(inv.Payload))
	}
	for k, v := range inv.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return core.ToolOutput{}, ctx.Err()
		}
		return core.ToolOutput{}, errors.New(errors.CodeTransportError, "request failed", err).
			WithContext("url", inv.URL)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return core.ToolOutput{}, ctx.Err()
		}
		return core.ToolOutput{}, errors.New(errors.CodeTransportError, "read body failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.FailedWith(value.String(string(data)), errors.CodeExecutionFailure,
			fmt.Sprintf("HTTP error: %s", resp.Status)), nil
	}
	return core.Succeeded(value.String(string(data))), nil
}

func contentType(payload string) string {
	if payload != "" && json.Valid([]byte(payload)) {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}

func (e *Executor) runInternal(ctx context.Context, inv Invocation) (core.ToolOutput, error) {
	op, ok := e.internal[inv.Operation]
	if !ok {
		return core.Failed(errors.CodeExecutionFailure, "unknown internal operation"), nil
	}
	out, err := op(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return core.ToolOutput{}, ctx.Err()
		}
		var ce *errors.ConductorError
		if stderrors.As(err, &ce) {
			return core.FromError(ce), nil
		}
		return core.Failed(errors.CodeExecutionFailure, err.Error()), nil
	}
	return core.Succeeded(value.String(out)), nil
}

var (
	_ Invoker = (*Executor)(nil)
	_ Runner  = (*Executor)(nil)
)
