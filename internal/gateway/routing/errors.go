package routing

import (
	"errors"
	"fmt"

	"github.com/emiago/sipgo/sip"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrInvalidCaller indicates the caller identity is empty or unusable.
	ErrInvalidCaller = errors.New("invalid caller identity")

	// ErrRouteFailed indicates an attempt produced a structured RoutingFailure.
	ErrRouteFailed = errors.New("routing failed")

	// ErrLookupTimeout indicates a presence lookup did not answer in time.
	ErrLookupTimeout = errors.New("presence lookup timeout")
)

// FailureReason is the structured reason code carried by a RoutingFailure.
// Reasons map onto SIP-domain-equivalent status codes at the protocol
// boundary.
type FailureReason int

const (
	// FailureNone means no failure occurred.
	FailureNone FailureReason = iota
	// FailureNotFound means the destination does not exist (404-equivalent).
	FailureNotFound
	// FailureTargetOffline means the web user has no active registration.
	FailureTargetOffline
	// FailureTargetBusy means the web user is already in a call (486-equivalent).
	FailureTargetBusy
	// FailureTargetUnreachable means registration exists but delivery fails.
	FailureTargetUnreachable
	// FailureDeclined means the callee rejected the call (603-equivalent).
	FailureDeclined
	// FailureTimeout means the attempt timed out (408-equivalent).
	FailureTimeout
	// FailureServerError means a gateway or internal fault (500/503-equivalent).
	FailureServerError
	// FailureMediaNegotiation means no codec agreement (488-equivalent).
	FailureMediaNegotiation
	// FailureCancelled means the caller abandoned the attempt (487-equivalent).
	FailureCancelled
)

// String returns the string representation of the reason.
func (r FailureReason) String() string {
	switch r {
	case FailureNone:
		return "None"
	case FailureNotFound:
		return "NotFound"
	case FailureTargetOffline:
		return "TargetOffline"
	case FailureTargetBusy:
		return "TargetBusy"
	case FailureTargetUnreachable:
		return "TargetUnreachable"
	case FailureDeclined:
		return "Declined"
	case FailureTimeout:
		return "Timeout"
	case FailureServerError:
		return "ServerError"
	case FailureMediaNegotiation:
		return "MediaNegotiation"
	case FailureCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

// SIPStatus returns the SIP-domain-equivalent status code for the reason.
func (r FailureReason) SIPStatus() sip.StatusCode {
	switch r {
	case FailureNotFound:
		return sip.StatusCode(404)
	case FailureTargetOffline, FailureTargetUnreachable:
		return sip.StatusCode(480)
	case FailureTargetBusy:
		return sip.StatusCode(486)
	case FailureDeclined:
		return sip.StatusCode(603)
	case FailureTimeout:
		return sip.StatusCode(408)
	case FailureServerError:
		return sip.StatusInternalServerError
	case FailureMediaNegotiation:
		return sip.StatusCode(488)
	case FailureCancelled:
		return sip.StatusCode(487)
	default:
		return sip.StatusInternalServerError
	}
}

// Retryable reports whether the failure class may be retried automatically.
// Timeout and server/gateway errors are transient; not-found, busy and
// declined are final and only ever surfaced with an explicit retry offer.
func (r FailureReason) Retryable() bool {
	return r == FailureTimeout || r == FailureServerError
}

// OffersRetry reports whether the caller should be shown a manual retry
// affordance for this failure.
func (r FailureReason) OffersRetry() bool {
	return r == FailureTargetBusy || r == FailureTimeout || r == FailureServerError
}

// RoutingFailure is the structured failure half of a RoutingDecision.
type RoutingFailure struct {
	Reason  FailureReason
	Target  string
	Message string
	Cause   error
}

// Error returns the error message.
func (f *RoutingFailure) Error() string {
	if f.Message != "" {
		return fmt.Sprintf("route %s: %s: %s", f.Target, f.Reason, f.Message)
	}
	if f.Cause != nil {
		return fmt.Sprintf("route %s: %s: %v", f.Target, f.Reason, f.Cause)
	}
	return fmt.Sprintf("route %s: %s", f.Target, f.Reason)
}

// Unwrap exposes the underlying cause, if any.
func (f *RoutingFailure) Unwrap() error {
	return f.Cause
}

// Is makes errors.Is(err, ErrRouteFailed) match any RoutingFailure.
func (f *RoutingFailure) Is(target error) bool {
	return target == ErrRouteFailed
}
