package generation

import (
	"context"
	"math/rand"
	"time"

	"medsim-server/internal/model"
)

// SleepFunc waits for the given duration or until the context is done.
// Injected so tests can observe waits without real time passing.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepWithContext is the production SleepFunc.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryPolicy wraps a single backend call and re-invokes it on retryable
// failures with exponential backoff. Rate-limited failures get a long base
// interval so quota-limited backends have a recovery window; transient
// network failures recover on a short one.
type RetryPolicy struct {
	MaxAttempts     int
	AllowQuotaRetry bool
	RateLimitBase   time.Duration
	TransientBase   time.Duration
	Jitter          time.Duration
	Sleep           SleepFunc
	Rand            *rand.Rand
}

func (p RetryPolicy) jitter() time.Duration {
	if p.Jitter <= 0 {
		return 0
	}
	if p.Rand != nil {
		return time.Duration(p.Rand.Int63n(int64(p.Jitter)))
	}
	return time.Duration(rand.Int63n(int64(p.Jitter)))
}

// backoff returns the wait after a retryable failure on attempt i (0-indexed).
func (p RetryPolicy) backoff(attempt int, kind model.FailureKind) time.Duration {
	base := p.TransientBase
	if kind == model.FailureRateLimited {
		base = p.RateLimitBase
	}
	return base*(1<<attempt) + p.jitter()
}

// WithRetry runs attempt up to MaxAttempts times. A fatal failure aborts
// immediately; a rate-limited failure is terminal unless AllowQuotaRetry is
// set. Exhausting the budget re-raises the last failure unchanged.
func WithRetry[T any](ctx context.Context, p RetryPolicy, attempt func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepWithContext
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for i := 0; i < maxAttempts; i++ {
		result, err := attempt(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		kind := model.ClassifyError(err)
		switch kind {
		case model.FailureTransient:
		case model.FailureRateLimited:
			if !p.AllowQuotaRetry {
				return zero, err
			}
		default:
			return zero, err
		}

		if i == maxAttempts-1 {
			break
		}
		if sleepErr := sleep(ctx, p.backoff(i, kind)); sleepErr != nil {
			// An interrupted wait surfaces the classified failure, not the
			// context error, so callers keep the real classification.
			return zero, lastErr
		}
	}
	return zero, lastErr
}
