package media

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrNotInitialized indicates no underlying media transport session exists.
	ErrNotInitialized = errors.New("media transport not initialized")

	// ErrInvalidArgument indicates a nil or malformed media description.
	ErrInvalidArgument = errors.New("invalid media description")

	// ErrInvalidState indicates the operation is not valid in the current
	// negotiation state.
	ErrInvalidState = errors.New("invalid negotiation state")

	// ErrNegotiationFailed indicates the two sides share no usable codec.
	// Maps to SIP 488 Not Acceptable Here at the protocol boundary.
	ErrNegotiationFailed = errors.New("media negotiation failed")

	// ErrClosed indicates the negotiation context has been released.
	ErrClosed = errors.New("negotiation closed")
)

// NegotiationError carries the attempted and locally available codec lists
// for diagnostics when the intersection comes up empty.
type NegotiationError struct {
	Attempted []string // Codecs offered by the remote side
	Available []string // Codecs supported locally
}

// Error returns the error message.
func (e *NegotiationError) Error() string {
	return fmt.Sprintf("no compatible codecs: attempted=[%s] available=[%s]",
		strings.Join(e.Attempted, ","), strings.Join(e.Available, ","))
}

// Unwrap returns ErrNegotiationFailed so errors.Is works.
func (e *NegotiationError) Unwrap() error {
	return ErrNegotiationFailed
}
