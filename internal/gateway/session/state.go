// Package session provides the call session engine: per-call state,
// the lifecycle state machine, and the session registry.
package session

import "fmt"

// CallState represents the lifecycle state of a call session
type CallState int

const (
	// StateIdle is the initial state before any call intent
	StateIdle CallState = iota
	// StateCalling is after the caller placed the call, before alerting
	StateCalling
	// StateRinging is while the callee side is alerting
	StateRinging
	// StateConnected is after answer, media flowing
	StateConnected
	// StateTerminated is the final state after the call ends
	StateTerminated
)

// String returns the string representation of the state
func (s CallState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCalling:
		return "Calling"
	case StateRinging:
		return "Ringing"
	case StateConnected:
		return "Connected"
	case StateTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// validTransitions defines which state transitions are allowed
var validTransitions = map[CallState][]CallState{
	StateIdle:       {StateCalling, StateTerminated},
	StateCalling:    {StateRinging, StateConnected, StateTerminated},
	StateRinging:    {StateConnected, StateTerminated},
	StateConnected:  {StateTerminated},
	StateTerminated: {}, // Terminal state, no transitions allowed
}

// CanTransitionTo checks if a transition from current state to next state is valid
func (s CallState) CanTransitionTo(next CallState) bool {
	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}
	for _, state := range allowed {
		if state == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s CallState) IsTerminal() bool {
	return s == StateTerminated
}

// EndCause explains why a call reached Terminated
type EndCause int

const (
	// CauseNone means the call has not terminated
	CauseNone EndCause = iota
	// CauseCallerHangup means the caller ended the call
	CauseCallerHangup
	// CauseCalleeHangup means the callee ended the call
	CauseCalleeHangup
	// CauseCancelled means the caller abandoned before answer
	CauseCancelled
	// CauseDeclined means the callee rejected
	CauseDeclined
	// CauseBusy means the callee was already in a call
	CauseBusy
	// CauseNoAnswer means alerting timed out
	CauseNoAnswer
	// CauseUnavailable means the destination was offline or unreachable
	CauseUnavailable
	// CauseMediaFailure means media negotiation or transport failed
	CauseMediaFailure
	// CauseTimeout means call setup timed out
	CauseTimeout
	// CauseError means an internal error occurred
	CauseError
)

// String returns the string representation of the cause
func (c EndCause) String() string {
	switch c {
	case CauseNone:
		return "None"
	case CauseCallerHangup:
		return "CallerHangup"
	case CauseCalleeHangup:
		return "CalleeHangup"
	case CauseCancelled:
		return "Cancelled"
	case CauseDeclined:
		return "Declined"
	case CauseBusy:
		return "Busy"
	case CauseNoAnswer:
		return "NoAnswer"
	case CauseUnavailable:
		return "Unavailable"
	case CauseMediaFailure:
		return "MediaFailure"
	case CauseTimeout:
		return "Timeout"
	case CauseError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}
