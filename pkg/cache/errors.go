package cache

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for caching operations.
var (
	// ErrNotFound is returned when a requested entry does not exist and the
	// caller asked for an error instead of a miss.
	ErrNotFound = errors.New("not found")

	// ErrNetwork is returned for transport failures talking to Redis or Chrome.
	ErrNetwork = errors.New("network error")
)

// RetryableError wraps an error to indicate it should trigger a retry.
type RetryableError struct{ Err error }

// Retryable wraps an error as a RetryableError.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Error returns the error message of the wrapped error.
func (e *RetryableError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable checks if an error is wrapped with RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// RetryOption tunes RetryWithBackoff.
type RetryOption func(*retryPolicy)

type retryPolicy struct {
	attempts int
	delay    time.Duration
}

// WithAttempts sets the total number of attempts (default 3).
func WithAttempts(n int) RetryOption { return func(p *retryPolicy) { p.attempts = max(n, 1) } }

// WithBaseDelay sets the delay before the first retry (default 1s). Each
// later retry waits twice as long as the previous one.
func WithBaseDelay(d time.Duration) RetryOption { return func(p *retryPolicy) { p.delay = d } }

// RetryWithBackoff retries fn with exponential backoff.
// Only errors wrapped with Retryable will trigger retries.
func RetryWithBackoff(ctx context.Context, fn func() error, opts ...RetryOption) error {
	p := retryPolicy{attempts: 3, delay: time.Second}
	for _, opt := range opts {
		opt(&p)
	}

	delay := p.delay
	var lastErr error
	for i := 0; i < p.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < p.attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}
