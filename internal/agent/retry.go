// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package agent

import (
	"context"
	"time"
)

// retry calls fn until it succeeds, returns an error retryable rejects, or
// the policy's attempts are used up. onRetry fires before each wait. The
// number of attempts made is returned with the result.
func retry[T any](
	ctx context.Context,
	policy RetryPolicy,
	retryable func(error) bool,
	onRetry func(attempt int, delay time.Duration, err error),
	fn func(ctx context.Context) (T, error),
) (T, int, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, attempt, nil
		}
		if ctx.Err() != nil || !retryable(err) || attempt >= policy.MaxAttempts {
			return zero, attempt, err
		}

		delay := policy.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if werr := wait(ctx, delay); werr != nil {
			return zero, attempt, err
		}
	}
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
