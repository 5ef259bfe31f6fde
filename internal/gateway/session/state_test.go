package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTransitions(t *testing.T) {
	allowed := []struct{ from, to CallState }{
		{StateIdle, StateCalling},
		{StateIdle, StateTerminated},
		{StateCalling, StateRinging},
		{StateCalling, StateConnected}, // early answer without alerting
		{StateCalling, StateTerminated},
		{StateRinging, StateConnected},
		{StateRinging, StateTerminated},
		{StateConnected, StateTerminated},
	}
	for _, tr := range allowed {
		assert.True(t, tr.from.CanTransitionTo(tr.to), "%s -> %s", tr.from, tr.to)
	}

	rejected := []struct{ from, to CallState }{
		{StateIdle, StateRinging},
		{StateIdle, StateConnected},
		{StateRinging, StateCalling},
		{StateConnected, StateRinging},
		{StateConnected, StateCalling},
		{StateTerminated, StateIdle},
		{StateTerminated, StateCalling},
		{StateTerminated, StateConnected},
	}
	for _, tr := range rejected {
		assert.False(t, tr.from.CanTransitionTo(tr.to), "%s -> %s", tr.from, tr.to)
	}
}

func TestTerminatedIsAbsorbing(t *testing.T) {
	for _, next := range []CallState{StateIdle, StateCalling, StateRinging, StateConnected, StateTerminated} {
		assert.False(t, StateTerminated.CanTransitionTo(next), "Terminated -> %s", next)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StateTerminated.IsTerminal())
	for _, s := range []CallState{StateIdle, StateCalling, StateRinging, StateConnected} {
		assert.False(t, s.IsTerminal(), "state=%s", s)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "Connected", StateConnected.String())
	assert.Equal(t, "Terminated", StateTerminated.String())
}

func TestEndCauseString(t *testing.T) {
	assert.Equal(t, "None", CauseNone.String())
	assert.Equal(t, "CallerHangup", CauseCallerHangup.String())
	assert.Equal(t, "Unavailable", CauseUnavailable.String())
}
