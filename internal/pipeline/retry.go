package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/postchunk/internal/store"
)

// IsRetryable checks if a store error is worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, store.ErrBusy)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 50 * time.Millisecond
	if base > 2*time.Second {
		base = 2 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// withRetry calls fn until it succeeds, fails with a non-retryable error, or
// MaxRetries retries are spent.
func withRetry[T any](ctx context.Context, log *slog.Logger, fn func() (T, error)) (T, error) {
	for attempt := 0; ; attempt++ {
		v, err := fn()
		if err == nil || !IsRetryable(err) || attempt == MaxRetries {
			return v, err
		}
		wait := Backoff(attempt)
		log.Warn("store busy, retrying", "attempt", attempt+1, "wait_ms", wait.Milliseconds())
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-time.After(wait):
		}
	}
}
