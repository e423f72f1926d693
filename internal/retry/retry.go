// Package retry runs an operation until it succeeds, fails with a
// non-retryable error, or exhausts a bounded number of attempts.
package retry

import (
	"context"
	"fmt"
	"time"

	"notesearch/internal/contextutil"
	"notesearch/internal/service"
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first. Values below 1 mean 1.
	MaxAttempts int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
	// Retryable decides whether an error is worth another attempt.
	// A nil Retryable treats only service.TransientError as retryable.
	Retryable func(error) bool
}

// DefaultPolicy retries transient errors three times, two seconds apart.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
		Retryable:   service.IsTransient,
	}
}

// Do runs op under the policy.
func (p Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue runs op under the policy and returns its value on success.
// The last error is returned wrapped once attempts are exhausted.
func DoValue[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	logger := contextutil.LoggerFromContext(ctx)

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = service.IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		logger.WarnContext(ctx, "operation failed, retrying",
			"operation", name,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", p.Delay,
			"error", err,
		)

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%s: %w", name, ctx.Err())
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
