package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() *CallSession {
	return NewSession(DirectionOutbound,
		Party{Handle: "alice@example.com", Kind: PartyWeb},
		Party{Handle: "+14155550100", Kind: PartyTelephone},
	)
}

func TestNewSessionStartsIdle(t *testing.T) {
	s := newTestSession()

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, CauseNone, s.Cause())
	assert.False(t, s.IsTerminated())
}

func TestTransitionHappyPath(t *testing.T) {
	s := newTestSession()

	for _, next := range []CallState{StateCalling, StateRinging, StateConnected, StateTerminated} {
		changed, _, err := s.transition(next)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, next, s.State())
	}
}

func TestTransitionSameStateIsNoOp(t *testing.T) {
	s := newTestSession()

	_, _, err := s.transition(StateCalling)
	require.NoError(t, err)

	changed, prev, err := s.transition(StateCalling)
	require.NoError(t, err, "repeating the current state is absorbed")
	assert.False(t, changed)
	assert.Equal(t, StateCalling, prev)
}

func TestTransitionRejectsInvalidMove(t *testing.T) {
	s := newTestSession()

	changed, prev, err := s.transition(StateConnected)
	assert.False(t, changed)
	assert.Equal(t, StateIdle, prev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StateIdle, invalid.From)
	assert.Equal(t, StateConnected, invalid.To)
}

func TestTransitionFirstWinnerDecidesRace(t *testing.T) {
	// Hangup racing answer: exactly one transition out of Ringing lands.
	for i := 0; i < 20; i++ {
		s := newTestSession()
		_, _, err := s.transition(StateCalling)
		require.NoError(t, err)
		_, _, err = s.transition(StateRinging)
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, results[0] = s.transition(StateConnected)
		}()
		go func() {
			defer wg.Done()
			_, _, results[1] = s.transition(StateTerminated)
		}()
		wg.Wait()

		final := s.State()
		switch final {
		case StateConnected:
			require.NoError(t, results[0])
			// The terminate loser may still have landed Connected->Terminated.
		case StateTerminated:
			require.NoError(t, results[1])
		default:
			t.Fatalf("unexpected final state %s", final)
		}
	}
}

func TestMarkTerminatedLatchesFuse(t *testing.T) {
	s := newTestSession()
	_, _, err := s.transition(StateTerminated)
	require.NoError(t, err)

	s.markTerminated(CauseCallerHangup, "caller")

	assert.True(t, s.IsTerminated())
	assert.Equal(t, CauseCallerHangup, s.Cause())
	assert.Equal(t, "caller", s.HangupSource())

	select {
	case <-s.Terminated():
	default:
		t.Fatal("terminated channel not closed")
	}
	select {
	case <-s.Context().Done():
	default:
		t.Fatal("session context not cancelled")
	}
}

func TestDurationsBeforePlacement(t *testing.T) {
	s := newTestSession()

	setup, ring, talk, total := s.Durations()
	assert.Zero(t, setup)
	assert.Zero(t, ring)
	assert.Zero(t, talk)
	assert.Zero(t, total)
}

func TestDurationsAfterFullLifecycle(t *testing.T) {
	s := newTestSession()
	for _, next := range []CallState{StateCalling, StateRinging, StateConnected, StateTerminated} {
		_, _, err := s.transition(next)
		require.NoError(t, err)
	}

	setup, ring, talk, total := s.Durations()
	assert.Equal(t, total, setup+talk, "setup and talk partition the call")
	assert.LessOrEqual(t, ring, setup, "alerting happens inside setup")
}

func TestCloseMediaWithoutNegotiator(t *testing.T) {
	s := newTestSession()
	s.closeMedia()
	s.closeMedia()
	assert.Nil(t, s.Negotiator())
}
