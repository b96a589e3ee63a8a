// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"time"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/resilience"
)

// RetryPolicy bounds the retries of transient failures (TIMEOUT and
// TRANSPORT_ERROR). Attempt n of the retries waits n*BackoffUnit first.
type RetryPolicy struct {
	MaxRetries  int
	BackoffUnit time.Duration
	// OnRetry is called before each retry with the retry number and the
	// failed output that caused it.
	OnRetry func(attempt int, last core.ToolOutput)
}

// DefaultRetryPolicy allows 3 retries waiting 1s, 2s and 3s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BackoffUnit: time.Second}
}

// Retry runs inv through invoker with the default policy.
func Retry(ctx context.Context, inv Invocation, invoker Invoker) core.ToolOutput {
	return DefaultRetryPolicy().Retry(ctx, inv, invoker)
}

// Retry runs inv until it succeeds, fails terminally or the retries are
// exhausted, and returns the last attempt's output as is. A context canceled
// during backoff ends the loop with CONTEXT_LOST.
func (p RetryPolicy) Retry(ctx context.Context, inv Invocation, invoker Invoker) core.ToolOutput {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}

	var last core.ToolOutput
	rc := resilience.RetryConfig{
		MaxAttempts:   p.MaxRetries + 1,
		Backoff:       resilience.LinearBackoff(p.BackoffUnit),
		IsRecoverable: func(error) bool { return true },
		OnRetry: func(attempt int, _ error) {
			if p.OnRetry != nil {
				p.OnRetry(attempt, last)
			}
		},
	}

	err := rc.Do(ctx, func() error {
		last = invoker.Invoke(ctx, inv)
		if last.Retryable() {
			return last.Err()
		}
		return nil
	})
	if errors.CodeOf(err) == errors.CodeContextLost {
		return core.FromError(err)
	}
	return last
}
