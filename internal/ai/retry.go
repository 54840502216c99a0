package ai

import (
	"context"
	"time"
)

type RetryPolicy struct {
	MaxAttempts       int
	PerAttemptTimeout time.Duration
}

// DefaultRetryPolicy allows one retry with no backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, PerAttemptTimeout: 45 * time.Second}
}

// Retry runs fn until it succeeds or the policy is exhausted. Each attempt
// gets its own timeout derived from ctx. onFail, when set, sees every
// failed attempt. It returns the attempts made and the last error.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error), onFail func(attempt int, err error)) (T, int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt - 1, err
		}

		v, err := runAttempt(ctx, p.PerAttemptTimeout, fn)
		if err == nil {
			return v, attempt, nil
		}
		lastErr = err
		if onFail != nil {
			onFail(attempt, err)
		}
	}
	return zero, maxAttempts, lastErr
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx)
}
