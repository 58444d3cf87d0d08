package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNetwork marks transient backend failures: redis timeouts, dropped
// connections. Wrapped with Retryable it drives the retry loop instead of
// failing the pipeline stage outright.
var ErrNetwork = errors.New("cache backend unreachable")

// RetryableError wraps an error to indicate the operation may succeed on a
// later attempt.
type RetryableError struct{ Err error }

// Retryable wraps an error as a RetryableError. A nil error stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is wrapped with RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Retry cadence for transient backend failures. Three attempts cover a
// redis blip without stalling an interactive CLI run for long.
const (
	retryAttempts  = 3
	retryBaseDelay = 250 * time.Millisecond
)

// RetryWithBackoff runs fn, retrying with exponential backoff while it
// returns retryable errors. Non-retryable errors are returned as-is, and a
// cancelled context cuts the wait short.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	delay := retryBaseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == retryAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
