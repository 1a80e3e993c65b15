package generation

import (
	"context"
	"time"

	"medsim-server/internal/model"
)

// FallbackPolicy iterates over an ordered list of candidate models, giving
// each a full retry budget before advancing to the next.
type FallbackPolicy struct {
	// CredentialPresent is checked once per invocation before any model is
	// tried; absence fails without a network attempt.
	CredentialPresent bool
	// QuotaCooldown is the wait before the next candidate after a
	// rate-limit flavored failure, so a second model is not hammered while
	// the account-wide quota is still saturated.
	QuotaCooldown time.Duration
	// Cooldown is the wait before the next candidate after any other failure.
	Cooldown time.Duration
	Sleep    SleepFunc
}

// WithFallback tries each candidate model in order until one succeeds.
// run is expected to wrap its own RetryPolicy. If every candidate is
// exhausted, the final underlying error is re-raised.
func WithFallback[T any](ctx context.Context, p FallbackPolicy, candidates []string, run func(ctx context.Context, modelID string) (T, error)) (T, error) {
	var zero T

	if !p.CredentialPresent {
		return zero, model.NewGenerationError(model.FailureMissingCredential, "backend API key is not configured")
	}
	if len(candidates) == 0 {
		return zero, model.NewGenerationError(model.FailureFatal, "no candidate models configured")
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepWithContext
	}

	var lastErr error
	for i, candidate := range candidates {
		result, err := run(ctx, candidate)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if i == len(candidates)-1 {
			break
		}
		cooldown := p.Cooldown
		if model.ClassifyError(err) == model.FailureRateLimited {
			cooldown = p.QuotaCooldown
		}
		if cooldown > 0 {
			if sleepErr := sleep(ctx, cooldown); sleepErr != nil {
				// Keep the classified failure when the wait is interrupted.
				return zero, lastErr
			}
		}
	}
	return zero, lastErr
}
