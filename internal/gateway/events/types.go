// Package events provides call lifecycle event definitions and publishing
// infrastructure. Designed for future NATS JetStream integration while
// remaining transport-agnostic.
package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the type of call event
type EventType string

const (
	// CallInitiated fires when a caller places a call and routing succeeds
	CallInitiated EventType = "call.initiated"
	// StateChanged fires on every call state transition
	StateChanged EventType = "call.state_changed"
	// CallRinging fires when the callee side starts alerting
	CallRinging EventType = "call.ringing"
	// CallAnswered fires when the callee accepts and media is negotiated
	CallAnswered EventType = "call.answered"
	// CallEnded fires when the call terminates (any reason)
	CallEnded EventType = "call.ended"
	// SDPOffer fires when a local offer is ready for delivery
	SDPOffer EventType = "call.sdp_offer"
	// SDPAnswer fires when a local answer is ready for delivery
	SDPAnswer EventType = "call.sdp_answer"
	// ICECandidate fires when a local transport candidate is ready
	ICECandidate EventType = "call.ice_candidate"
	// RecordingStarted fires when call recording begins
	RecordingStarted EventType = "call.recording_started"
	// RecordingStopped fires when call recording ends
	RecordingStopped EventType = "call.recording_stopped"
)

// EndReason explains why a call ended
type EndReason string

const (
	EndReasonNormal      EndReason = "normal"      // Hangup from either party
	EndReasonBusy        EndReason = "busy"        // Callee already in a call
	EndReasonNoAnswer    EndReason = "no_answer"   // Timeout waiting for answer
	EndReasonCancelled   EndReason = "cancelled"   // Caller abandoned before answer
	EndReasonDeclined    EndReason = "declined"    // Callee rejected
	EndReasonUnavailable EndReason = "unavailable" // Destination unreachable or offline
	EndReasonError       EndReason = "error"       // Internal error
	EndReasonTimeout     EndReason = "timeout"     // Setup or signaling timeout
	EndReasonMediaError  EndReason = "media_error" // Media negotiation or transport failure
)

// PartyRole identifies which side of the call an event pertains to
type PartyRole string

const (
	RoleCaller PartyRole = "caller"
	RoleCallee PartyRole = "callee"
)

// Direction indicates call direction relative to the gateway
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Event is the base interface for all call events
type Event interface {
	// Type returns the event type for routing/filtering
	Type() EventType
	// Subject returns the subject this event should publish to
	Subject() string
	// Timestamp returns when the event occurred
	Timestamp() time.Time
	// CallID returns the primary correlation ID
	CallID() string
}

// BaseEvent contains fields common to all events
type BaseEvent struct {
	// EventID is a unique identifier for this event instance (for deduplication)
	EventID string `json:"event_id"`
	// EventType identifies the event
	EventType EventType `json:"event_type"`
	// EventTime is when the event occurred (RFC3339Nano)
	EventTime time.Time `json:"event_time"`
	// CallUUID is the internal unique call identifier
	CallUUID string `json:"call_uuid"`
	// Role identifies which party this event pertains to
	Role PartyRole `json:"role,omitempty"`
	// NodeID identifies the gateway instance (for distributed tracing)
	NodeID string `json:"node_id,omitempty"`
}

func (e *BaseEvent) Type() EventType      { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time { return e.EventTime }
func (e *BaseEvent) CallID() string       { return e.CallUUID }

// Subject returns the publish subject for routing.
// Format: voicebridge.calls.<call_uuid>.<event_type_suffix>
func (e *BaseEvent) Subject() string {
	suffix := string(e.EventType)[5:] // strip "call." prefix
	return "voicebridge.calls." + e.CallUUID + "." + suffix
}

// Party represents one side of a call
type Party struct {
	Handle      string `json:"handle"`                 // Canonical handle (number or user@domain)
	Kind        string `json:"kind"`                   // "web" or "telephone"
	DisplayName string `json:"display_name,omitempty"` // Display name
}

// MediaInfo captures media negotiation details
type MediaInfo struct {
	LocalAddr     string   `json:"local_addr,omitempty"`
	LocalPort     int      `json:"local_port,omitempty"`
	RemoteAddr    string   `json:"remote_addr,omitempty"`
	RemotePort    int      `json:"remote_port,omitempty"`
	Codecs        []string `json:"codecs,omitempty"`         // Offered/negotiated codecs
	SelectedCodec string   `json:"selected_codec,omitempty"` // Final codec
}

// CallInitiatedEvent fires when a call attempt is placed
type CallInitiatedEvent struct {
	BaseEvent
	Direction     Direction `json:"direction"`
	Caller        Party     `json:"caller"`
	Callee        Party     `json:"callee"`
	DialString    string    `json:"dial_string"`
	Strategy      string    `json:"strategy"` // Routing strategy chosen
	OfferedCodecs []string  `json:"offered_codecs,omitempty"`
}

// StateChangedEvent fires on every call state transition
type StateChangedEvent struct {
	BaseEvent
	Previous string `json:"previous"`
	Next     string `json:"next"`
	// Cause names what drove the transition (answer, hangup, timeout, ...)
	Cause string `json:"cause,omitempty"`
}

// CallRingingEvent fires when the callee starts alerting
type CallRingingEvent struct {
	BaseEvent
	EarlyMedia bool       `json:"early_media"`
	MediaInfo  *MediaInfo `json:"media_info,omitempty"`
}

// CallAnsweredEvent fires when the callee accepts
type CallAnsweredEvent struct {
	BaseEvent
	MediaInfo *MediaInfo `json:"media_info,omitempty"`
	// Time from placement to answer
	SetupDurationMs int64 `json:"setup_duration_ms"`
	// Time from first ring to answer
	RingDurationMs int64 `json:"ring_duration_ms,omitempty"`
}

// SDPOfferEvent carries a local offer for delivery to the remote party
type SDPOfferEvent struct {
	BaseEvent
	SDP     string `json:"sdp"`
	Dialect string `json:"dialect"` // "browser" or "telephony"
}

// SDPAnswerEvent carries a local answer for delivery to the remote party
type SDPAnswerEvent struct {
	BaseEvent
	SDP     string `json:"sdp"`
	Dialect string `json:"dialect"` // "browser" or "telephony"
}

// ICECandidateEvent carries a local transport candidate
type ICECandidateEvent struct {
	BaseEvent
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdp_mid,omitempty"`
	SDPMLineIndex int    `json:"sdp_mline_index,omitempty"`
}

// RecordingEvent fires when recording starts or stops
type RecordingEvent struct {
	BaseEvent
	RecordingID string `json:"recording_id"`
	// DurationMs is set on stop
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// CallEndedEvent fires when a call terminates
type CallEndedEvent struct {
	BaseEvent
	EndReason       EndReason `json:"end_reason"`
	EndReasonDetail string    `json:"end_reason_detail,omitempty"` // Human-readable
	// SIP-domain-equivalent status that ended the call (if applicable)
	StatusCode int `json:"status_code,omitempty"`
	// Who initiated the hangup
	HangupSource string `json:"hangup_source,omitempty"` // "caller", "callee", "system"
	// Duration fields (in milliseconds)
	SetupDurationMs int64 `json:"setup_duration_ms"`
	RingDurationMs  int64 `json:"ring_duration_ms"`
	TalkDurationMs  int64 `json:"talk_duration_ms"`
	TotalDurationMs int64 `json:"total_duration_ms"`
}

// MarshalEvent serializes an event for transport
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
