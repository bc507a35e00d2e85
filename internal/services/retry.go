package services

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds how collaborator calls are retried.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// AttemptTimeout caps each individual attempt. Zero disables the cap.
	AttemptTimeout time.Duration
}

// Permanent marks an error that must not be retried (for example an HTTP 404).
type Permanent struct{ Err error }

func (p Permanent) Error() string { return p.Err.Error() }

func (p Permanent) Unwrap() error { return p.Err }

// Retry runs op until it succeeds, returns a Permanent error, the attempts are
// exhausted, or ctx is cancelled. Backoff doubles after every failure up to
// MaxBackoff.
func Retry(ctx context.Context, policy RetryPolicy, op func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := policy.InitialBackoff
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = runAttempt(ctx, policy.AttemptTimeout, op)
		if lastErr == nil {
			return nil
		}
		var permanent Permanent
		if errors.As(lastErr, &permanent) {
			return permanent.Err
		}
		if ctx.Err() != nil || attempt == attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; policy.MaxBackoff <= 0 || next <= policy.MaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func runAttempt(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}
