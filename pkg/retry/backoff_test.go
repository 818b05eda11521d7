package retry_test

import (
	"context"
	"testing"
	"time"

	"github.com/kodaiva/mcp-memory/pkg/retry"
	"github.com/m-mizutani/gt"
)

func TestWithSucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := retry.With(context.Background(), retry.Options{}, func(ctx context.Context) error {
		calls++
		return nil
	})
	gt.NoError(t, err)
	gt.Equal(t, calls, 1)
}

func TestWithRetriesRetryableStatus(t *testing.T) {
	calls := 0
	opts := retry.Options{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	err := retry.With(context.Background(), opts, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &retry.HTTPStatusError{StatusCode: 503, Err: context.DeadlineExceeded}
		}
		return nil
	})
	gt.NoError(t, err)
	gt.Equal(t, calls, 3)
}

func TestWithDoesNotRetryNonRetryableStatus(t *testing.T) {
	calls := 0
	opts := retry.Options{MaxRetries: 2, InitialDelay: time.Millisecond}
	err := retry.With(context.Background(), opts, func(ctx context.Context) error {
		calls++
		return &retry.HTTPStatusError{StatusCode: 400, Err: context.DeadlineExceeded}
	})
	gt.Error(t, err)
	gt.Equal(t, calls, 1)
}

func TestWithExhaustsRetries(t *testing.T) {
	calls := 0
	opts := retry.Options{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	err := retry.With(context.Background(), opts, func(ctx context.Context) error {
		calls++
		return &retry.HTTPStatusError{StatusCode: 500, Err: context.DeadlineExceeded}
	})
	gt.Error(t, err)
	gt.Equal(t, calls, 3)
}

func TestWithRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := retry.Options{MaxRetries: 3, InitialDelay: 10 * time.Millisecond}
	calls := 0
	err := retry.With(ctx, opts, func(ctx context.Context) error {
		calls++
		return &retry.HTTPStatusError{StatusCode: 503, Err: context.DeadlineExceeded}
	})
	gt.Error(t, err)
	gt.Equal(t, calls, 1)
}

func TestWithCustomIsRetryable(t *testing.T) {
	calls := 0
	opts := retry.Options{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		IsRetryable:  func(err error) bool { return err.Error() == "flaky" },
	}
	err := retry.With(context.Background(), opts, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errFlaky{}
		}
		return nil
	})
	gt.NoError(t, err)
	gt.Equal(t, calls, 2)
}

type errFlaky struct{}

func (errFlaky) Error() string { return "flaky" }
