package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var errBoom = errors.New("boom")

func fast(retries int) Config {
	return Config{MaxRetries: retries, Backoff: time.Millisecond}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 600*time.Millisecond, cfg.Backoff)
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fast(2), "flaky", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errBoom
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustionWrapsLastError(t *testing.T) {
	calls := 0
	last := errors.New("third failure")
	_, err := Do(context.Background(), fast(2), "doomed", func(ctx context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, last
		}
		return 0, errBoom
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.ErrorIs(t, err, last)
	assert.NotErrorIs(t, err, ErrCanceled)
}

func TestDo_ZeroRetriesIsOneAttempt(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fast(0), "once", func(ctx context.Context) (int, error) {
		calls++
		return 0, errBoom
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fast(5), "perm", func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(errBoom)
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, errBoom, err)
	assert.Nil(t, Permanent(nil))
}

func TestDo_CancelDuringBackoff(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	start := time.Now()
	_, err := Do(ctx, Config{MaxRetries: 3, Backoff: time.Hour}, "slow", func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errBoom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestDo_AlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Do(ctx, fast(2), "never", func(ctx context.Context) (int, error) {
		calls++
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrCanceled)
	assert.Equal(t, 0, calls)
}

func TestDo_BackoffBetweenAttempts(t *testing.T) {
	start := time.Now()
	_, _ = Do(context.Background(), Config{MaxRetries: 2, Backoff: 20 * time.Millisecond}, "timed", func(ctx context.Context) (int, error) {
		return 0, errBoom
	})
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestWithFallback(t *testing.T) {
	t.Run("success skips fallback", func(t *testing.T) {
		got, err := WithFallback(context.Background(), fast(2), "ok",
			func(ctx context.Context) (string, error) { return "real", nil },
			func(error) string { t.Fatal("fallback called"); return "" })
		require.NoError(t, err)
		assert.Equal(t, "real", got)
	})

	t.Run("exhaustion uses fallback with last error", func(t *testing.T) {
		var seen error
		got, err := WithFallback(context.Background(), fast(1), "bad",
			func(ctx context.Context) (string, error) { return "", errBoom },
			func(last error) string { seen = last; return "fallback" })
		require.NoError(t, err)
		assert.Equal(t, "fallback", got)
		assert.ErrorIs(t, seen, errBoom)
	})

	t.Run("cancellation propagates", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := WithFallback(ctx, fast(1), "gone",
			func(ctx context.Context) (string, error) { return "", errBoom },
			func(error) string { return "fallback" })
		assert.ErrorIs(t, err, ErrCanceled)
	})
}
