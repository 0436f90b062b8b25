package orchestrator

import (
	"context"
	"time"
)

// retryWithBackoff retries fn with exponential backoff while retryable
// classifies the error as transient. Non-transient errors and context
// cancellation return immediately.
func retryWithBackoff[T any](
	ctx context.Context,
	attempts int,
	baseDelay, maxDelay time.Duration,
	retryable func(error) bool,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	var lastErr error
	delay := baseDelay

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !retryable(err) {
			return zero, err
		}
		lastErr = err
	}
	return zero, lastErr
}
