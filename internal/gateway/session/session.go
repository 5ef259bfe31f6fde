package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/google/uuid"

	"github.com/sebas/voicebridge/internal/gateway/media"
	"github.com/sebas/voicebridge/internal/gateway/vad"
)

// ErrInvalidTransition is the sentinel matched by errors.Is for any
// rejected state transition.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrSessionTerminated is returned for operations on a terminated session.
var ErrSessionTerminated = errors.New("session terminated")

// InvalidTransitionError reports a rejected state transition with both
// endpoints. It unwraps to ErrInvalidTransition.
type InvalidTransitionError struct {
	From CallState
	To   CallState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// PartyKind distinguishes web and telephone endpoints.
type PartyKind int

const (
	PartyWeb PartyKind = iota
	PartyTelephone
)

// String returns the string representation of the kind.
func (k PartyKind) String() string {
	switch k {
	case PartyWeb:
		return "web"
	case PartyTelephone:
		return "telephone"
	default:
		return "unknown"
	}
}

// Party identifies one side of a call.
type Party struct {
	Handle      string
	Kind        PartyKind
	DisplayName string
}

// Direction indicates call direction relative to the gateway.
type Direction int

const (
	DirectionOutbound Direction = iota
	DirectionInbound
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "inbound"
	default:
		return "outbound"
	}
}

// CallSession carries the full per-call state. All mutation goes through
// the owning Engine; direct field access outside this package is
// read-only via accessors.
type CallSession struct {
	mu sync.RWMutex

	// Identification
	ID        string
	Direction Direction
	Caller    Party
	Callee    Party

	// State machine
	state          CallState
	stateChangedAt time.Time
	cause          EndCause
	hangupSource   string

	// Lifecycle timestamps
	CreatedAt  time.Time
	placedAt   time.Time
	ringingAt  time.Time
	answeredAt time.Time
	endedAt    time.Time

	// Media
	negotiator *media.Negotiator
	speech     *vad.Pipeline

	// Recording
	recordingID      string
	recordingStarted time.Time

	// terminated latches exactly once when the session reaches Terminated.
	terminated core.Fuse

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession creates a session in Idle state.
func NewSession(direction Direction, caller, callee Party) *CallSession {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	return &CallSession{
		ID:             uuid.New().String(),
		Direction:      direction,
		Caller:         caller,
		Callee:         callee,
		state:          StateIdle,
		stateChangedAt: now,
		CreatedAt:      now,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// State returns the current call state.
func (s *CallSession) State() CallState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Cause returns the termination cause, CauseNone while active.
func (s *CallSession) Cause() EndCause {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cause
}

// HangupSource reports who ended the call ("caller", "callee", "system").
func (s *CallSession) HangupSource() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hangupSource
}

// IsTerminated returns true once the session reached Terminated.
func (s *CallSession) IsTerminated() bool {
	return s.terminated.IsBroken()
}

// Terminated returns a channel closed when the session terminates.
func (s *CallSession) Terminated() <-chan struct{} {
	return s.terminated.Watch()
}

// Context returns the session's context for lifetime management.
func (s *CallSession) Context() context.Context {
	return s.ctx
}

// transition attempts to move the session to next. It returns changed
// false with a nil error when next equals the current state (repeated
// requests are absorbed without effect), and an InvalidTransitionError
// when the move is not allowed. Under concurrent calls the lock makes
// the first caller win; the loser sees the new state.
func (s *CallSession) transition(next CallState) (changed bool, prev CallState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev = s.state
	if prev == next {
		return false, prev, nil
	}
	if !prev.CanTransitionTo(next) {
		return false, prev, &InvalidTransitionError{From: prev, To: next}
	}

	s.state = next
	now := time.Now()
	s.stateChangedAt = now

	switch next {
	case StateCalling:
		s.placedAt = now
	case StateRinging:
		s.ringingAt = now
	case StateConnected:
		s.answeredAt = now
	case StateTerminated:
		s.endedAt = now
	}
	return true, prev, nil
}

// markTerminated records the cause and latches the termination fuse.
// Must be called exactly when the Terminated transition succeeded.
func (s *CallSession) markTerminated(cause EndCause, source string) {
	s.mu.Lock()
	s.cause = cause
	s.hangupSource = source
	s.mu.Unlock()

	s.cancel()
	s.terminated.Break()
}

// SetNegotiator attaches the media negotiator owned by this session.
func (s *CallSession) SetNegotiator(n *media.Negotiator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.negotiator = n
}

// Negotiator returns the session's media negotiator, nil before setup.
func (s *CallSession) Negotiator() *media.Negotiator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.negotiator
}

// SetSpeechPipeline attaches the voice activity pipeline watching this
// session's inbound audio.
func (s *CallSession) SetSpeechPipeline(p *vad.Pipeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speech = p
}

// SpeechState reports the current voice activity on the inbound audio
// stream. Sessions without media report Silence.
func (s *CallSession) SpeechState() vad.State {
	s.mu.RLock()
	p := s.speech
	s.mu.RUnlock()
	if p == nil {
		return vad.Silence
	}
	return p.State()
}

// RecordingID returns the active recording ID, empty when not recording.
func (s *CallSession) RecordingID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recordingID
}

// Durations returns setup, ring, talk and total durations for the
// session. Zero values are returned for phases that never happened.
func (s *CallSession) Durations() (setup, ring, talk, total time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	end := s.endedAt
	if end.IsZero() {
		end = time.Now()
	}
	if !s.placedAt.IsZero() {
		total = end.Sub(s.placedAt)
		if !s.answeredAt.IsZero() {
			setup = s.answeredAt.Sub(s.placedAt)
			talk = end.Sub(s.answeredAt)
		}
	}
	if !s.ringingAt.IsZero() && !s.answeredAt.IsZero() {
		ring = s.answeredAt.Sub(s.ringingAt)
	}
	return setup, ring, talk, total
}

// closeMedia tears down the negotiator if present. Safe to call more
// than once.
func (s *CallSession) closeMedia() {
	s.mu.Lock()
	n := s.negotiator
	s.negotiator = nil
	s.mu.Unlock()

	if n != nil {
		_ = n.Close()
	}
}
