// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jllopis/conductor/pkg/errors"
)

// TimeoutConfig controls timeout behavior.
type TimeoutConfig struct {
	// Duration is the maximum time allowed for the operation. Zero disables the timeout.
	Duration time.Duration
}

// WithTimeout executes fn with a deadline derived from ctx.
//
// fn receives the derived context and must stop its work (kill the
// subprocess, abort the request) once that context is done. When the
// deadline passes first, WithTimeout returns CodeTimeout without waiting for
// fn; the late result is discarded.
func WithTimeout[T any](ctx context.Context, config TimeoutConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if config.Duration <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, contextError(ctx, config)
	case res := <-done:
		// fn may notice the deadline before we do; report it the same way.
		if res.err != nil && ctx.Err() != nil {
			return res.value, contextError(ctx, config)
		}
		return res.value, res.err
	}
}

func contextError(ctx context.Context, config TimeoutConfig) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.New(errors.CodeTimeout, "timed out", nil).
			WithContext("timeout", config.Duration.String())
	}
	return errors.New(errors.CodeContextLost, "canceled", ctx.Err())
}

func as(err error, target **errors.ConductorError) bool {
	return stderrors.As(err, target)
}
