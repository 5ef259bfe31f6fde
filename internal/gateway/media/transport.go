package media

import (
	"context"
	"fmt"

	"github.com/pion/rtp"
)

// CandidateType classifies an ICE transport address.
type CandidateType int

const (
	// CandidateHost is a local interface address.
	CandidateHost CandidateType = iota
	// CandidateReflexive is a server-reflexive address discovered via STUN.
	CandidateReflexive
	// CandidateRelay is a relayed address allocated on a TURN server.
	CandidateRelay
)

// String returns the string representation of the candidate type.
func (t CandidateType) String() string {
	switch t {
	case CandidateHost:
		return "host"
	case CandidateReflexive:
		return "srflx"
	case CandidateRelay:
		return "relay"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// Candidate is one ICE transport address associated with a call session.
type Candidate struct {
	Address       string        `json:"address"`
	Port          int           `json:"port"`
	Type          CandidateType `json:"type"`
	Raw           string        `json:"candidate"` // full candidate line for the signaling relay
	SDPMid        string        `json:"sdp_mid,omitempty"`
	SDPMLineIndex uint16        `json:"sdp_mline_index,omitempty"`
}

// CandidateSink receives local candidates released toward the signaling
// channel. Called in strict arrival order, each candidate exactly once.
type CandidateSink func(Candidate)

// Transport is the capability surface the negotiation engine consumes from
// the signaling/media transport provider. The engine never touches wire-level
// SIP or RTP itself; implementations own packet transport, ICE gathering and
// key exchange.
type Transport interface {
	// CreateLocalOffer produces a local SDP offer, blocking on any
	// asynchronous gathering the provider performs.
	CreateLocalOffer(ctx context.Context) (string, error)

	// CreateLocalAnswer produces a local SDP answer for the previously set
	// remote offer.
	CreateLocalAnswer(ctx context.Context) (string, error)

	// SetRemoteDescription applies the remote side's SDP.
	SetRemoteDescription(ctx context.Context, typ Type, sdpText string) error

	// AddRemoteCandidate feeds a remote ICE candidate into connectivity
	// establishment.
	AddRemoteCandidate(c Candidate) error

	// OnLocalCandidate registers the callback invoked as local candidates
	// are discovered. Must be registered before CreateLocalOffer/Answer.
	OnLocalCandidate(fn func(Candidate))

	// OnAudioFrame registers the receiver for decoded inbound audio frames
	// once media is flowing.
	OnAudioFrame(fn func(pkt *rtp.Packet))

	// Close releases all provider resources for this session.
	Close() error
}
