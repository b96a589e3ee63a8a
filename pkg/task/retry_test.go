package task

import (
	"context"
	"testing"
	"time"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/value"
)

// scripted returns the outputs in order, repeating the last one.
type scripted struct {
	outputs []core.ToolOutput
	calls   int
}

func (s *scripted) Invoke(context.Context, Invocation) core.ToolOutput {
	i := s.calls
	if i >= len(s.outputs) {
		i = len(s.outputs) - 1
	}
	s.calls++
	return s.outputs[i]
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BackoffUnit: time.Millisecond}
}

func timeout() core.ToolOutput { return core.Failed(errors.CodeTimeout, "timed out") }

func TestRetryCapsAtFourAttempts(t *testing.T) {
	inv := &scripted{outputs: []core.ToolOutput{
		timeout(), timeout(), timeout(),
		core.Succeeded(value.String("done")),
		core.Succeeded(value.String("never")),
	}}
	out := fastPolicy().Retry(context.Background(), Internal("ping"), inv)
	if inv.calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", inv.calls)
	}
	if s, _ := out.Result.AsString(); !out.Success || s != "done" {
		t.Fatalf("expected 4th attempt result, got %+v", out)
	}
}

func TestRetryReturnsFinalFailure(t *testing.T) {
	inv := &scripted{outputs: []core.ToolOutput{timeout()}}
	out := fastPolicy().Retry(context.Background(), Internal("ping"), inv)
	if inv.calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", inv.calls)
	}
	if out.Success || out.Code != errors.CodeTimeout {
		t.Fatalf("expected final timeout, got %+v", out)
	}
}

func TestRetryTerminalFailureNotRetried(t *testing.T) {
	tests := []struct {
		name string
		out  core.ToolOutput
	}{
		{"execution failure", core.Failed(errors.CodeExecutionFailure, "exit status 1")},
		{"invalid arguments", core.Failed(errors.CodeInvalidArguments, "bad")},
		{"success", core.Succeeded(value.String("ok"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &scripted{outputs: []core.ToolOutput{tt.out}}
			out := fastPolicy().Retry(context.Background(), Internal("ping"), inv)
			if inv.calls != 1 {
				t.Fatalf("expected a single attempt, got %d", inv.calls)
			}
			if out.Success != tt.out.Success || out.Code != tt.out.Code {
				t.Fatalf("unexpected output %+v", out)
			}
		})
	}
}

func TestRetryTransportThenSuccess(t *testing.T) {
	var delays []int
	p := fastPolicy()
	p.OnRetry = func(attempt int, last core.ToolOutput) {
		if last.Code != errors.CodeTransportError {
			t.Errorf("unexpected last output %+v", last)
		}
		delays = append(delays, attempt)
	}
	inv := &scripted{outputs: []core.ToolOutput{
		core.Failed(errors.CodeTransportError, "connection refused"),
		core.Succeeded(value.Int(1)),
	}}
	out := p.Retry(context.Background(), Internal("ping"), inv)
	if !out.Success || inv.calls != 2 || len(delays) != 1 || delays[0] != 1 {
		t.Fatalf("unexpected retry: out=%+v calls=%d hooks=%v", out, inv.calls, delays)
	}
}

func TestRetryBackoffHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inv := &scripted{outputs: []core.ToolOutput{timeout()}}
	p := RetryPolicy{MaxRetries: 3, BackoffUnit: time.Hour}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	out := p.Retry(ctx, Internal("ping"), inv)
	if out.Code != errors.CodeContextLost {
		t.Fatalf("expected context lost, got %+v", out)
	}
	if inv.calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", inv.calls)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxRetries != 3 || p.BackoffUnit != time.Second {
		t.Fatalf("unexpected default policy %+v", p)
	}
}
