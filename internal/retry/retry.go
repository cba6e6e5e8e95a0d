// Package retry wraps fallible operations with bounded retry and a fixed
// backoff, and provides the attempt-else-fallback combinator used by the
// pipeline stages.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"briefer/internal/logging"
)

// Config configures retry behavior.
type Config struct {
	MaxRetries int           // Attempts after the first; 0 means one attempt
	Backoff    time.Duration // Fixed delay between attempts
}

// DefaultConfig returns the pipeline's retry policy: 2 retries, 600ms apart.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		Backoff:    600 * time.Millisecond,
	}
}

var (
	// ErrMaxRetriesExceeded indicates all attempts failed.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// ErrCanceled indicates the context ended before an attempt succeeded.
	ErrCanceled = errors.New("retry canceled")
)

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns it (unwrapped) at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do runs fn up to 1+MaxRetries times. On exhaustion the returned error wraps
// both ErrMaxRetriesExceeded and the last failure. If ctx ends first the
// error wraps ErrCanceled and ctx.Err().
func Do[T any](ctx context.Context, cfg Config, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, canceled(op, err)
		}

		v, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logging.PipelineDebug("retry: %s succeeded on attempt %d", op, attempt+1)
			}
			return v, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		// A failure caused by the caller's own cancellation is not retried.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, canceled(op, ctxErr)
		}

		lastErr = err
		logging.PipelineDebug("retry: attempt %d/%d for %s failed: %v", attempt+1, cfg.MaxRetries+1, op, err)

		if attempt < cfg.MaxRetries {
			if err := sleep(ctx, cfg.Backoff); err != nil {
				return zero, canceled(op, err)
			}
		}
	}

	return zero, fmt.Errorf("%w for %s: %w", ErrMaxRetriesExceeded, op, lastErr)
}

// WithFallback runs fn under Do and, if every attempt fails, returns
// fallback(lastErr) instead. Cancellation is still returned as an error.
func WithFallback[T any](ctx context.Context, cfg Config, op string, fn func(ctx context.Context) (T, error), fallback func(lastErr error) T) (T, error) {
	v, err := Do(ctx, cfg, op, fn)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, ErrCanceled) {
		return v, err
	}
	logging.PipelineWarn("retry: %s exhausted, using fallback: %v", op, err)
	return fallback(err), nil
}

func canceled(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrCanceled, op, cause)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
