// Package retry wraps fallible collaborator calls in bounded retries with
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vietddude/postwatch/internal/core/domain"
)

// ErrExhausted is returned (wrapped, alongside the last underlying error)
// after all attempts have failed.
var ErrExhausted = errors.New("retry attempts exhausted")

const (
	// maxBackoff caps the exponential delay so a high attempt count never
	// produces unbounded waits.
	maxBackoff = 60 * time.Second

	// rateLimitPause is the fixed extra delay applied before the backoff
	// wait when a failure carries a rate-limit signal.
	rateLimitPause = 12 * time.Second
)

// Config defines retry behavior.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	MaxAttempts: 3,
	BaseDelay:   2 * time.Second,
}

// Do executes op up to cfg.MaxAttempts times. Attempt 1 runs immediately;
// after failed attempt k the wait is BaseDelay * 2^(k-1), capped at 60s.
// Rate-limited failures add a fixed extra pause before the backoff wait.
// On exhaustion the last observed error is surfaced so callers can log the
// root cause; the result matches errors.Is(err, ErrExhausted).
//
// Do is stateless and reentrant; each call is independent.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		if domain.IsRateLimited(err) {
			if err := sleep(ctx, rateLimitPause); err != nil {
				return zero, err
			}
		}

		if err := sleep(ctx, backoff(cfg.BaseDelay, attempt)); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

// backoff computes BaseDelay * 2^(attempt-1), capped at maxBackoff.
func backoff(base time.Duration, attempt int) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt-1))
	if d > float64(maxBackoff) {
		return maxBackoff
	}
	return time.Duration(d)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
