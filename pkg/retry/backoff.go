// Package retry implements the exponential-backoff retry wrapper used
// by the remote embedding provider (spec §4.6, C7). The vector index
// client does not use it: each index request is attempted once.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/kodaiva/mcp-memory/pkg/utils/logging"
)

// Options configures a retry run. Zero values fall back to the spec's
// defaults.
type Options struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	RetryableHTTP  map[int]bool
	// IsRetryable overrides classification for non-HTTP errors (e.g.
	// a vector-store client's own error type). Optional.
	IsRetryable func(error) bool
}

// DefaultOptions matches spec §4.6: 3 retries, 1s initial delay, 30s
// cap, factor 2.
func DefaultOptions() Options {
	return Options{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2,
		RetryableHTTP: map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true},
	}
}

// HTTPStatusError is the minimal shape an operation should wrap its
// failures in so With can classify them by status code.
type HTTPStatusError struct {
	StatusCode int
	Err        error
}

func (e *HTTPStatusError) Error() string { return e.Err.Error() }
func (e *HTTPStatusError) Unwrap() error { return e.Err }

// ErrRetriesExhausted wraps the last error once all attempts fail.
var ErrRetriesExhausted = goerr.New("retries exhausted")

// With runs op, retrying on retryable failures with exponential
// backoff and full jitter until MaxRetries is exceeded or ctx is
// cancelled.
func With(ctx context.Context, opts Options, op func(ctx context.Context) error) error {
	o := applyDefaults(opts)

	var lastErr error
	delay := o.InitialDelay
	for attempt := 1; attempt <= o.MaxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == o.MaxRetries || !isRetryable(o, err) {
			break
		}

		logging.From(ctx).Warn("retrying after failure",
			"attempt", attempt, "max_retries", o.MaxRetries, "delay", delay, "error", err)

		jittered := time.Duration(rand.Int63n(int64(delay) + 1))
		select {
		case <-ctx.Done():
			return goerr.Wrap(ctx.Err(), "retry cancelled", goerr.V("attempt", attempt+1))
		case <-time.After(jittered):
		}

		delay = time.Duration(float64(delay) * o.BackoffFactor)
		if delay > o.MaxDelay {
			delay = o.MaxDelay
		}
	}

	return goerr.Wrap(ErrRetriesExhausted, "operation failed after retries",
		goerr.V("max_retries", o.MaxRetries), goerr.V("cause", lastErr.Error()))
}

func applyDefaults(o Options) Options {
	d := DefaultOptions()
	if o.MaxRetries > 0 {
		d.MaxRetries = o.MaxRetries
	}
	if o.InitialDelay > 0 {
		d.InitialDelay = o.InitialDelay
	}
	if o.MaxDelay > 0 {
		d.MaxDelay = o.MaxDelay
	}
	if o.BackoffFactor > 0 {
		d.BackoffFactor = o.BackoffFactor
	}
	if o.RetryableHTTP != nil {
		d.RetryableHTTP = o.RetryableHTTP
	}
	if o.IsRetryable != nil {
		d.IsRetryable = o.IsRetryable
	}
	return d
}

func isRetryable(o Options, err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return o.RetryableHTTP[statusErr.StatusCode]
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if o.IsRetryable != nil {
		return o.IsRetryable(err)
	}
	return false
}
