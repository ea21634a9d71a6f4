package backoff

import (
	"context"
	"errors"
	"fmt"
)

// ErrAttemptsExhausted wraps the last error once every attempt has failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// permanentError marks a failure retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Stop wraps err so Retry returns it immediately, skipping the remaining
// attempts. Use it for failures retrying cannot fix, HTTP rejections for
// one.
func Stop(err error) error {
	return &permanentError{err: err}
}

// Retry runs fn up to maxAttempts times, sleeping per the policy between
// failures. Context cancellation is checked before each attempt and during
// the sleep. The last failure is wrapped in ErrAttemptsExhausted; an error
// wrapped with Stop returns unwrapped right away.
func Retry(ctx context.Context, policy Policy, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = fn(attempt); lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if attempt < maxAttempts {
			if err := Sleep(ctx, policy.Delay(attempt)); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w: %w", ErrAttemptsExhausted, lastErr)
}
