package retry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairval/apperrors"
)

// recordSleeps replaces the backoff sleep and records requested delays.
func recordSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	original := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = original })
	return &delays
}

func TestDoInvocationCount(t *testing.T) {
	tests := []struct {
		failures   int
		maxRetries int
		wantCalls  int
		wantErr    bool
	}{
		{failures: 0, maxRetries: 3, wantCalls: 1},
		{failures: 1, maxRetries: 3, wantCalls: 2},
		{failures: 2, maxRetries: 3, wantCalls: 3},
		{failures: 3, maxRetries: 3, wantCalls: 3, wantErr: true},
		{failures: 10, maxRetries: 3, wantCalls: 3, wantErr: true},
		{failures: 4, maxRetries: 5, wantCalls: 5},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("failures=%d/max=%d", tt.failures, tt.maxRetries), func(t *testing.T) {
			recordSleeps(t)
			calls := 0
			value, err := Do(context.Background(), func(ctx context.Context) (string, error) {
				calls++
				if calls <= tt.failures {
					return "", fmt.Errorf("failure %d", calls)
				}
				return "ok", nil
			}, Options{MaxRetries: tt.maxRetries, BaseDelay: time.Millisecond})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, fmt.Sprintf("failure %d", tt.wantCalls), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", value)
		})
	}
}

func TestDoExponentialDelaysAndOnRetry(t *testing.T) {
	delays := recordSleeps(t)
	var attempts []int

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		return 0, errors.New("unreachable")
	}, Options{
		MaxRetries: 4,
		BaseDelay:  time.Second,
		OnRetry: func(attempt int, err error) {
			attempts = append(attempts, attempt)
		},
	})

	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *delays)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestDoReturnsLastErrorUnmodified(t *testing.T) {
	recordSleeps(t)
	sentinel := errors.New("last")
	calls := 0
	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls == 2 {
			return 0, sentinel
		}
		return 0, errors.New("first")
	}, Options{MaxRetries: 2})

	assert.Same(t, sentinel, err)
}

func TestDoTimesOutSlowAttempts(t *testing.T) {
	recordSleeps(t)
	var calls atomic.Int32

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls.Add(1)
		time.Sleep(300 * time.Millisecond)
		return 1, nil
	}, Options{MaxRetries: 2, Timeout: 20 * time.Millisecond})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	recordSleeps(t)
	calls := 0
	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("bad input: %w", apperrors.ErrValidation)
	}, Options{MaxRetries: 3, ShouldRetry: apperrors.IsRetryable})

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, 1, calls)
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	recordSleeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("failed")
	}, Options{MaxRetries: 3})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, time.Second, opts.BaseDelay)
	assert.Equal(t, 30*time.Second, opts.Timeout)
}
