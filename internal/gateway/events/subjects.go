package events

import "fmt"

// Subject naming conventions.
//
// Hierarchy:
//   voicebridge.calls.<call_uuid>.<event_suffix>  - Per-call events
//   voicebridge.presence.<handle>                 - Presence events
//
// Wildcard subscriptions:
//   voicebridge.calls.>                           - All call events
//   voicebridge.calls.*.ended                     - All call.ended events
//   voicebridge.calls.<call_uuid>.*               - All events for one call

const (
	// SubjectPrefix is the root of all voicebridge subjects
	SubjectPrefix = "voicebridge"

	// Call event subjects
	SubjectCalls                = SubjectPrefix + ".calls"
	SubjectCallInitiated        = "initiated"
	SubjectCallStateChanged     = "state_changed"
	SubjectCallRinging          = "ringing"
	SubjectCallAnswered         = "answered"
	SubjectCallEnded            = "ended"
	SubjectCallSDPOffer         = "sdp_offer"
	SubjectCallSDPAnswer        = "sdp_answer"
	SubjectCallICECandidate     = "ice_candidate"
	SubjectCallRecordingStarted = "recording_started"
	SubjectCallRecordingStopped = "recording_stopped"

	// Presence subjects
	SubjectPresence = SubjectPrefix + ".presence"
)

// CallSubject builds a subject for a specific call event.
// Example: CallSubject("abc-123", "ended") => "voicebridge.calls.abc-123.ended"
func CallSubject(callUUID string, eventSuffix string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectCalls, callUUID, eventSuffix)
}

// PresenceSubject builds a subject for presence events.
// Example: PresenceSubject("alice@example.com") => "voicebridge.presence.alice@example.com"
func PresenceSubject(handle string) string {
	return fmt.Sprintf("%s.%s", SubjectPresence, handle)
}

// Subject patterns for common consumer configurations
var (
	// PatternAllCalls matches all call events
	PatternAllCalls = SubjectCalls + ".>"

	// PatternCallEnded matches all call.ended events
	PatternCallEnded = SubjectCalls + ".*.ended"

	// PatternAllPresence matches all presence events
	PatternAllPresence = SubjectPresence + ".>"
)

// SubjectForEventType returns the suffix used for a given event type.
func SubjectForEventType(t EventType) string {
	switch t {
	case CallInitiated:
		return SubjectCallInitiated
	case StateChanged:
		return SubjectCallStateChanged
	case CallRinging:
		return SubjectCallRinging
	case CallAnswered:
		return SubjectCallAnswered
	case CallEnded:
		return SubjectCallEnded
	case SDPOffer:
		return SubjectCallSDPOffer
	case SDPAnswer:
		return SubjectCallSDPAnswer
	case ICECandidate:
		return SubjectCallICECandidate
	case RecordingStarted:
		return SubjectCallRecordingStarted
	case RecordingStopped:
		return SubjectCallRecordingStopped
	default:
		return "unknown"
	}
}
