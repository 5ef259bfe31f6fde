package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyDelayGrowth(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, Multiplier: 2.0, MaxAttempts: 4}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
}

func TestRetryPolicyMultiplierFloor(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, Multiplier: 1.0}

	assert.Equal(t, 150*time.Millisecond, p.Delay(2), "multipliers below 1.5 are raised")
}

func TestRetryPolicyMaxDelayCap(t *testing.T) {
	p := RetryPolicy{
		BaseDelay:  100 * time.Millisecond,
		Multiplier: 2.0,
		MaxDelay:   250 * time.Millisecond,
	}

	assert.Equal(t, 250*time.Millisecond, p.Delay(3))
}

func TestRouteWithRetrySuccessFirstAttempt(t *testing.T) {
	calls := 0
	decision, err := RouteWithRetry(context.Background(), DefaultRetryPolicy(),
		func(ctx context.Context, attempt int) (*Decision, error) {
			calls++
			return &Decision{Strategy: StrategyDirectWeb}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StrategyDirectWeb, decision.Strategy)
}

func TestRouteWithRetryRetriesTransientFailures(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Millisecond, Multiplier: 2.0, MaxAttempts: 3}

	calls := 0
	decision, err := RouteWithRetry(context.Background(), policy,
		func(ctx context.Context, attempt int) (*Decision, error) {
			calls++
			return &Decision{Failure: &RoutingFailure{Reason: FailureServerError, Target: "x"}}, nil
		})

	assert.Equal(t, 3, calls, "transient failures exhaust the attempt budget")
	require.True(t, decision.Failed())
	assert.True(t, errors.Is(err, ErrRouteFailed))
}

func TestRouteWithRetryRecoversAfterTransientFailure(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Millisecond, Multiplier: 2.0, MaxAttempts: 3}

	calls := 0
	decision, err := RouteWithRetry(context.Background(), policy,
		func(ctx context.Context, attempt int) (*Decision, error) {
			calls++
			if attempt < 2 {
				return &Decision{Failure: &RoutingFailure{Reason: FailureTimeout, Target: "x"}}, nil
			}
			return &Decision{Strategy: StrategyBridgeToTrunk}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.False(t, decision.Failed())
}

func TestRouteWithRetryFinalFailureNotRetried(t *testing.T) {
	calls := 0
	decision, err := RouteWithRetry(context.Background(), DefaultRetryPolicy(),
		func(ctx context.Context, attempt int) (*Decision, error) {
			calls++
			return &Decision{Failure: &RoutingFailure{Reason: FailureTargetOffline, Target: "x"}}, nil
		})

	require.NoError(t, err, "final failures come back inside the decision")
	assert.Equal(t, 1, calls)
	assert.Equal(t, FailureTargetOffline, decision.Failure.Reason)
}

func TestRouteWithRetryStructuralErrorStops(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	decision, err := RouteWithRetry(context.Background(), DefaultRetryPolicy(),
		func(ctx context.Context, attempt int) (*Decision, error) {
			calls++
			return nil, boom
		})

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, decision)
	assert.Equal(t, 1, calls)
}

func TestRouteWithRetryContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	policy := RetryPolicy{BaseDelay: time.Hour, Multiplier: 2.0, MaxAttempts: 3}
	decision, err := RouteWithRetry(ctx, policy,
		func(ctx context.Context, attempt int) (*Decision, error) {
			return &Decision{Failure: &RoutingFailure{Reason: FailureTimeout, Target: "x"}}, nil
		})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, decision, "the last failed decision is still surfaced")
	assert.Equal(t, FailureTimeout, decision.Failure.Reason)
}
