package events

import (
	"time"

	"github.com/google/uuid"
)

// Builder provides fluent construction of call events with consistent defaults.
type Builder struct {
	nodeID string
}

// NewBuilder creates an event builder with global defaults.
func NewBuilder(nodeID string) *Builder {
	return &Builder{nodeID: nodeID}
}

// newBase creates a BaseEvent with common fields populated.
func (b *Builder) newBase(eventType EventType, callUUID string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		EventTime: time.Now().UTC(),
		CallUUID:  callUUID,
		NodeID:    b.nodeID,
	}
}

// CallInitiatedBuilder constructs CallInitiatedEvent.
type CallInitiatedBuilder struct {
	event *CallInitiatedEvent
}

// CallInitiated starts building a CallInitiatedEvent.
func (b *Builder) CallInitiated(callUUID string) *CallInitiatedBuilder {
	return &CallInitiatedBuilder{
		event: &CallInitiatedEvent{
			BaseEvent: b.newBase(CallInitiated, callUUID),
			Direction: DirectionOutbound,
		},
	}
}

func (cb *CallInitiatedBuilder) Direction(d Direction) *CallInitiatedBuilder {
	cb.event.Direction = d
	return cb
}

func (cb *CallInitiatedBuilder) Caller(p Party) *CallInitiatedBuilder {
	cb.event.Caller = p
	return cb
}

func (cb *CallInitiatedBuilder) Callee(p Party) *CallInitiatedBuilder {
	cb.event.Callee = p
	return cb
}

func (cb *CallInitiatedBuilder) DialString(s string) *CallInitiatedBuilder {
	cb.event.DialString = s
	return cb
}

func (cb *CallInitiatedBuilder) Strategy(s string) *CallInitiatedBuilder {
	cb.event.Strategy = s
	return cb
}

func (cb *CallInitiatedBuilder) OfferedCodecs(codecs []string) *CallInitiatedBuilder {
	cb.event.OfferedCodecs = codecs
	return cb
}

func (cb *CallInitiatedBuilder) Build() *CallInitiatedEvent {
	return cb.event
}

// StateChangedBuilder constructs StateChangedEvent.
type StateChangedBuilder struct {
	event *StateChangedEvent
}

// StateChanged starts building a StateChangedEvent.
func (b *Builder) StateChanged(callUUID, previous, next string) *StateChangedBuilder {
	return &StateChangedBuilder{
		event: &StateChangedEvent{
			BaseEvent: b.newBase(StateChanged, callUUID),
			Previous:  previous,
			Next:      next,
		},
	}
}

func (cb *StateChangedBuilder) Cause(cause string) *StateChangedBuilder {
	cb.event.Cause = cause
	return cb
}

func (cb *StateChangedBuilder) Build() *StateChangedEvent {
	return cb.event
}

// CallRingingBuilder constructs CallRingingEvent.
type CallRingingBuilder struct {
	event *CallRingingEvent
}

// CallRinging starts building a CallRingingEvent.
func (b *Builder) CallRinging(callUUID string) *CallRingingBuilder {
	return &CallRingingBuilder{
		event: &CallRingingEvent{
			BaseEvent: b.newBase(CallRinging, callUUID),
		},
	}
}

func (cb *CallRingingBuilder) EarlyMedia(hasMedia bool) *CallRingingBuilder {
	cb.event.EarlyMedia = hasMedia
	return cb
}

func (cb *CallRingingBuilder) Media(m *MediaInfo) *CallRingingBuilder {
	cb.event.MediaInfo = m
	return cb
}

func (cb *CallRingingBuilder) Build() *CallRingingEvent {
	return cb.event
}

// CallAnsweredBuilder constructs CallAnsweredEvent.
type CallAnsweredBuilder struct {
	event *CallAnsweredEvent
}

// CallAnswered starts building a CallAnsweredEvent.
func (b *Builder) CallAnswered(callUUID string) *CallAnsweredBuilder {
	return &CallAnsweredBuilder{
		event: &CallAnsweredEvent{
			BaseEvent: b.newBase(CallAnswered, callUUID),
		},
	}
}

func (cb *CallAnsweredBuilder) Media(m *MediaInfo) *CallAnsweredBuilder {
	cb.event.MediaInfo = m
	return cb
}

func (cb *CallAnsweredBuilder) SetupDuration(d time.Duration) *CallAnsweredBuilder {
	cb.event.SetupDurationMs = d.Milliseconds()
	return cb
}

func (cb *CallAnsweredBuilder) RingDuration(d time.Duration) *CallAnsweredBuilder {
	cb.event.RingDurationMs = d.Milliseconds()
	return cb
}

func (cb *CallAnsweredBuilder) Build() *CallAnsweredEvent {
	return cb.event
}

// SDPOfferBuilder constructs SDPOfferEvent.
type SDPOfferBuilder struct {
	event *SDPOfferEvent
}

// SDPOffer starts building an SDPOfferEvent.
func (b *Builder) SDPOffer(callUUID, sdp, dialect string) *SDPOfferBuilder {
	return &SDPOfferBuilder{
		event: &SDPOfferEvent{
			BaseEvent: b.newBase(SDPOffer, callUUID),
			SDP:       sdp,
			Dialect:   dialect,
		},
	}
}

func (cb *SDPOfferBuilder) Role(r PartyRole) *SDPOfferBuilder {
	cb.event.Role = r
	return cb
}

func (cb *SDPOfferBuilder) Build() *SDPOfferEvent {
	return cb.event
}

// SDPAnswerBuilder constructs SDPAnswerEvent.
type SDPAnswerBuilder struct {
	event *SDPAnswerEvent
}

// SDPAnswer starts building an SDPAnswerEvent.
func (b *Builder) SDPAnswer(callUUID, sdp, dialect string) *SDPAnswerBuilder {
	return &SDPAnswerBuilder{
		event: &SDPAnswerEvent{
			BaseEvent: b.newBase(SDPAnswer, callUUID),
			SDP:       sdp,
			Dialect:   dialect,
		},
	}
}

func (cb *SDPAnswerBuilder) Role(r PartyRole) *SDPAnswerBuilder {
	cb.event.Role = r
	return cb
}

func (cb *SDPAnswerBuilder) Build() *SDPAnswerEvent {
	return cb.event
}

// ICECandidateBuilder constructs ICECandidateEvent.
type ICECandidateBuilder struct {
	event *ICECandidateEvent
}

// ICECandidate starts building an ICECandidateEvent.
func (b *Builder) ICECandidate(callUUID, candidate string) *ICECandidateBuilder {
	return &ICECandidateBuilder{
		event: &ICECandidateEvent{
			BaseEvent: b.newBase(ICECandidate, callUUID),
			Candidate: candidate,
		},
	}
}

func (cb *ICECandidateBuilder) Mid(sdpMid string, mLineIndex int) *ICECandidateBuilder {
	cb.event.SDPMid = sdpMid
	cb.event.SDPMLineIndex = mLineIndex
	return cb
}

func (cb *ICECandidateBuilder) Role(r PartyRole) *ICECandidateBuilder {
	cb.event.Role = r
	return cb
}

func (cb *ICECandidateBuilder) Build() *ICECandidateEvent {
	return cb.event
}

// RecordingBuilder constructs RecordingEvent.
type RecordingBuilder struct {
	event *RecordingEvent
}

// RecordingStarted starts building a recording start event.
func (b *Builder) RecordingStarted(callUUID, recordingID string) *RecordingBuilder {
	return &RecordingBuilder{
		event: &RecordingEvent{
			BaseEvent:   b.newBase(RecordingStarted, callUUID),
			RecordingID: recordingID,
		},
	}
}

// RecordingStopped starts building a recording stop event.
func (b *Builder) RecordingStopped(callUUID, recordingID string) *RecordingBuilder {
	return &RecordingBuilder{
		event: &RecordingEvent{
			BaseEvent:   b.newBase(RecordingStopped, callUUID),
			RecordingID: recordingID,
		},
	}
}

func (cb *RecordingBuilder) Duration(d time.Duration) *RecordingBuilder {
	cb.event.DurationMs = d.Milliseconds()
	return cb
}

func (cb *RecordingBuilder) Build() *RecordingEvent {
	return cb.event
}

// CallEndedBuilder constructs CallEndedEvent.
type CallEndedBuilder struct {
	event *CallEndedEvent
}

// CallEnded starts building a CallEndedEvent.
func (b *Builder) CallEnded(callUUID string) *CallEndedBuilder {
	return &CallEndedBuilder{
		event: &CallEndedEvent{
			BaseEvent: b.newBase(CallEnded, callUUID),
		},
	}
}

func (cb *CallEndedBuilder) Reason(r EndReason, detail string) *CallEndedBuilder {
	cb.event.EndReason = r
	cb.event.EndReasonDetail = detail
	return cb
}

func (cb *CallEndedBuilder) Status(code int) *CallEndedBuilder {
	cb.event.StatusCode = code
	return cb
}

func (cb *CallEndedBuilder) HangupSource(source string) *CallEndedBuilder {
	cb.event.HangupSource = source
	return cb
}

func (cb *CallEndedBuilder) Durations(setup, ring, talk, total time.Duration) *CallEndedBuilder {
	cb.event.SetupDurationMs = setup.Milliseconds()
	cb.event.RingDurationMs = ring.Milliseconds()
	cb.event.TalkDurationMs = talk.Milliseconds()
	cb.event.TotalDurationMs = total.Milliseconds()
	return cb
}

func (cb *CallEndedBuilder) Build() *CallEndedEvent {
	return cb.event
}
