package routing

import (
	"context"
	"time"
)

// RetryPolicy drives automatic re-attempts for transient routing
// failures. Final failures (not-found, busy, declined) are never
// retried automatically.
type RetryPolicy struct {
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// Multiplier grows the delay between consecutive retries.
	// Values below 1.5 are raised to 1.5.
	Multiplier float64
	// MaxAttempts is the total attempt count including the first.
	MaxAttempts int
	// MaxDelay caps a single wait. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy used for outbound call setup.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2.0,
		MaxAttempts: 3,
	}
}

// Delay returns the wait before the given retry (retry 1 follows the
// first failed attempt).
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	mult := p.Multiplier
	if mult < 1.5 {
		mult = 1.5
	}
	d := float64(p.BaseDelay)
	for i := 1; i < retry; i++ {
		d *= mult
	}
	delay := time.Duration(d)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// AttemptFunc performs one routing attempt.
type AttemptFunc func(ctx context.Context, attempt int) (*Decision, error)

// RouteWithRetry runs fn up to MaxAttempts times, backing off between
// attempts. Only transient failures are retried; the final decision or
// error is returned as soon as a non-retryable outcome appears.
func RouteWithRetry(ctx context.Context, policy RetryPolicy, fn AttemptFunc) (*Decision, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastDecision *Decision
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		decision, err := fn(ctx, attempt)
		if err != nil {
			// Plain errors are structural (bad input, cancelled context),
			// not transient network outcomes.
			return nil, err
		}
		if !decision.Failed() || !decision.Failure.Reason.Retryable() {
			return decision, nil
		}

		lastDecision = decision
		lastErr = decision.Failure

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return lastDecision, ctx.Err()
		case <-time.After(policy.Delay(attempt)):
		}
	}

	return lastDecision, lastErr
}
