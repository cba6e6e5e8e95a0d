// Package perception holds the text-generation backends. The pipeline only
// sees LLMClient; which provider sits behind it is decided once at startup.
package perception

import (
	"context"
	"errors"
	"time"
)

// LLMClient defines the interface for text-generation providers.
// Output is free-form text with no structural guarantee.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Models holds the two generation handles a run uses: Fast for context
// summary, planning and per-source summaries, Deep for synthesis.
// They are created once per process and shared by every run.
type Models struct {
	Fast LLMClient
	Deep LLMClient
}

// Validate reports whether both handles are set.
func (m Models) Validate() error {
	if m.Fast == nil || m.Deep == nil {
		return errors.New("perception: fast and deep clients are required")
	}
	return nil
}

// ErrEmptyResponse is returned when a provider answers with no text at all.
var ErrEmptyResponse = errors.New("empty completion")

// withCallTimeout bounds a single call by d. An earlier caller deadline
// still wins.
func withCallTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
