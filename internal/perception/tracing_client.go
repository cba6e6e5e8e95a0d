package perception

import (
	"context"
	"sync/atomic"
	"time"

	"briefer/internal/logging"
)

// TracingClient wraps any LLMClient, logging each call and keeping counters.
type TracingClient struct {
	underlying LLMClient
	name       string

	calls       atomic.Int64
	failures    atomic.Int64
	promptChars atomic.Int64
	replyChars  atomic.Int64
	totalMillis atomic.Int64
}

// TraceStats is a snapshot of a TracingClient's counters.
type TraceStats struct {
	Calls       int64 `json:"calls"`
	Failures    int64 `json:"failures"`
	PromptChars int64 `json:"prompt_chars"`
	ReplyChars  int64 `json:"reply_chars"`
	TotalMillis int64 `json:"total_ms"`
}

// NewTracingClient wraps underlying; name labels the log lines (e.g. "fast").
func NewTracingClient(name string, underlying LLMClient) *TracingClient {
	return &TracingClient{underlying: underlying, name: name}
}

// Complete implements LLMClient with tracing.
func (tc *TracingClient) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	response, err := tc.underlying.Complete(ctx, prompt)
	duration := time.Since(start)

	tc.calls.Add(1)
	tc.promptChars.Add(int64(len(prompt)))
	tc.totalMillis.Add(duration.Milliseconds())
	if err != nil {
		tc.failures.Add(1)
		logging.Get(logging.CategoryPerception).Warn("LLM call failed: client=%s duration=%v error=%v", tc.name, duration, err)
		return "", err
	}
	tc.replyChars.Add(int64(len(response)))
	logging.Perception("LLM call completed: client=%s duration=%v prompt_len=%d response_len=%d", tc.name, duration, len(prompt), len(response))
	return response, nil
}

// Stats returns the counters accumulated so far.
func (tc *TracingClient) Stats() TraceStats {
	return TraceStats{
		Calls:       tc.calls.Load(),
		Failures:    tc.failures.Load(),
		PromptChars: tc.promptChars.Load(),
		ReplyChars:  tc.replyChars.Load(),
		TotalMillis: tc.totalMillis.Load(),
	}
}
