// Package retry wraps blocking operations with a per-attempt timeout and
// exponential backoff between attempts.
package retry

import (
	"context"
	"fmt"
	"log"
	"time"

	"fairval/apperrors"
)

// Options configures retry behavior
type Options struct {
	MaxRetries int           // Total attempts, including the first one
	BaseDelay  time.Duration // Delay before the first retry, doubled after each attempt
	Timeout    time.Duration // Per-attempt timeout; zero disables it
	// OnRetry is called before each retry with the 1-based retry number and
	// the error that caused it.
	OnRetry func(attempt int, err error)
	// ShouldRetry stops retrying early when it returns false. Nil retries
	// every error.
	ShouldRetry func(err error) bool
}

// DefaultOptions returns default retry options
func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Timeout:    30 * time.Second,
	}
}

// LogRetries returns an OnRetry callback that logs under the given label.
func LogRetries(label string) func(int, error) {
	return func(attempt int, err error) {
		log.Printf("🔄 Retrying %s (attempt %d): %v", label, attempt, err)
	}
}

// sleep waits for d or until ctx is done. Swapped in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs op until it succeeds or the attempts are exhausted, and returns
// the last error unmodified on exhaustion.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	var zero T

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		value, err := runAttempt(ctx, op, opts.Timeout)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if opts.ShouldRetry != nil && !opts.ShouldRetry(err) {
			return zero, lastErr
		}
		if attempt == maxRetries-1 {
			break
		}

		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, err)
		}
		if err := sleep(ctx, opts.BaseDelay*time.Duration(1<<attempt)); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// runAttempt runs a single attempt raced against the timeout.
func runAttempt[T any](ctx context.Context, op func(ctx context.Context) (T, error), timeout time.Duration) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := op(attemptCtx)
		done <- outcome{value, err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-attemptCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w after %s", apperrors.ErrTimeout, timeout)
	}
}
