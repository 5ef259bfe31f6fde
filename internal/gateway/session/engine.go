package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtp"

	"github.com/sebas/voicebridge/internal/gateway/events"
	"github.com/sebas/voicebridge/internal/gateway/media"
	"github.com/sebas/voicebridge/internal/gateway/metrics"
	"github.com/sebas/voicebridge/internal/gateway/presence"
	"github.com/sebas/voicebridge/internal/gateway/routing"
	"github.com/sebas/voicebridge/internal/gateway/vad"
)

// TransportFactory creates the media transport for a new session.
// The engine does not know which transport implementation backs a call.
type TransportFactory func(ctx context.Context, sessionID string) (media.Transport, error)

// transitionBudget is the interactive latency target for one observable
// state transition. Exceeding it is reported, never failed.
const transitionBudget = 500 * time.Millisecond

// EngineConfig configures the call engine.
type EngineConfig struct {
	// NodeID identifies this gateway instance in events.
	NodeID string
	// LocalCodecs is the codec set offered on the gateway side.
	LocalCodecs []media.Codec
	// RetryPolicy drives automatic re-attempts for transient routing failures.
	RetryPolicy routing.RetryPolicy
	// NegotiationTimeout bounds each media negotiation step.
	NegotiationTimeout time.Duration
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig(nodeID string) EngineConfig {
	return EngineConfig{
		NodeID:             nodeID,
		LocalCodecs:        media.BrowserCodecs,
		RetryPolicy:        routing.DefaultRetryPolicy(),
		NegotiationTimeout: media.DefaultNegotiationTimeout,
	}
}

// Engine owns all call sessions and drives their state machines.
// Every observable transition publishes events in a fixed order:
// the intent event first, then the state change, then any
// connection-level event.
type Engine struct {
	cfg          EngineConfig
	registry     *Registry
	router       *routing.Router
	presence     *presence.Store
	builder      *events.Builder
	publisher    events.Publisher
	metrics      *metrics.Metrics
	newTransport TransportFactory
}

// NewEngine wires the call engine.
func NewEngine(
	cfg EngineConfig,
	registry *Registry,
	router *routing.Router,
	presenceStore *presence.Store,
	publisher events.Publisher,
	m *metrics.Metrics,
	factory TransportFactory,
) *Engine {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Engine{
		cfg:          cfg,
		registry:     registry,
		router:       router,
		presence:     presenceStore,
		builder:      events.NewBuilder(cfg.NodeID),
		publisher:    publisher,
		metrics:      m,
		newTransport: factory,
	}
}

// PlaceCall routes and starts an outbound call attempt from caller to
// the dialed destination. On a routing failure the returned session is
// already terminated with the mapped cause and the routing failure is
// returned as the error.
func (e *Engine) PlaceCall(ctx context.Context, caller Party, dialed string) (*CallSession, error) {
	decision, err := routing.RouteWithRetry(ctx, e.cfg.RetryPolicy, func(ctx context.Context, attempt int) (*routing.Decision, error) {
		if attempt > 1 {
			slog.Debug("[Engine] Retrying route", "caller", caller.Handle, "dialed", dialed, "attempt", attempt)
		}
		return e.router.RouteOutbound(ctx, caller.Handle, dialed)
	})
	if err != nil && decision == nil {
		return nil, err
	}

	// Latency accounting starts after routing so retry backoff is not
	// charged to the first transition.
	started := time.Now()

	callee := Party{Handle: decision.Target.Handle()}
	if decision.Target.Kind == routing.TargetTelephone {
		callee.Kind = PartyTelephone
	}

	sess := NewSession(DirectionOutbound, caller, callee)
	if addErr := e.registry.Add(sess); addErr != nil {
		return nil, addErr
	}
	e.metrics.CallStarted(sess.Direction.String())

	// Intent event precedes the state change.
	e.publish(ctx, e.builder.CallInitiated(sess.ID).
		Caller(events.Party{Handle: caller.Handle, Kind: caller.Kind.String(), DisplayName: caller.DisplayName}).
		Callee(events.Party{Handle: callee.Handle, Kind: callee.Kind.String()}).
		DialString(dialed).
		Strategy(decision.Strategy.String()).
		OfferedCodecs(media.Names(e.cfg.LocalCodecs)).
		Build())

	if _, _, trErr := e.applyTransition(ctx, sess, StateCalling, "placed", started); trErr != nil {
		return sess, trErr
	}

	if decision.Failed() {
		e.metrics.RoutingOutcome(decision.Failure.Reason.String())
		e.terminate(ctx, sess, causeForFailure(decision.Failure.Reason), "system",
			decision.Failure.Reason.String(), int(decision.Failure.Reason.SIPStatus()))
		return sess, decision.Failure
	}
	e.metrics.RoutingOutcome(decision.Strategy.String())

	if setupErr := e.setupMedia(ctx, sess, decision); setupErr != nil {
		e.metrics.NegotiationFailed()
		e.terminate(ctx, sess, CauseMediaFailure, "system", setupErr.Error(),
			int(routing.FailureMediaNegotiation.SIPStatus()))
		return sess, setupErr
	}

	e.setBusy(sess, true)
	return sess, nil
}

// AcceptInbound registers a call arriving from the telephone network and
// routes it to the web user identified by toHandle.
func (e *Engine) AcceptInbound(ctx context.Context, fromNumber, toHandle string, offer *media.Description) (*CallSession, error) {
	decision, err := e.router.RouteInbound(ctx, fromNumber, toHandle)
	if err != nil {
		return nil, err
	}
	started := time.Now()

	caller := Party{Handle: fromNumber, Kind: PartyTelephone}
	callee := Party{Handle: decision.Target.Handle(), Kind: PartyWeb}

	sess := NewSession(DirectionInbound, caller, callee)
	if addErr := e.registry.Add(sess); addErr != nil {
		return nil, addErr
	}
	e.metrics.CallStarted(sess.Direction.String())

	e.publish(ctx, e.builder.CallInitiated(sess.ID).
		Direction(events.DirectionInbound).
		Caller(events.Party{Handle: caller.Handle, Kind: caller.Kind.String()}).
		Callee(events.Party{Handle: callee.Handle, Kind: callee.Kind.String()}).
		DialString(toHandle).
		Strategy(decision.Strategy.String()).
		Build())

	if _, _, trErr := e.applyTransition(ctx, sess, StateCalling, "received", started); trErr != nil {
		return sess, trErr
	}

	if decision.Failed() {
		e.metrics.RoutingOutcome(decision.Failure.Reason.String())
		e.terminate(ctx, sess, causeForFailure(decision.Failure.Reason), "system",
			decision.Failure.Reason.String(), int(decision.Failure.Reason.SIPStatus()))
		return sess, decision.Failure
	}
	e.metrics.RoutingOutcome(decision.Strategy.String())

	if offer != nil {
		if negErr := e.answerMedia(ctx, sess, offer); negErr != nil {
			e.metrics.NegotiationFailed()
			e.terminate(ctx, sess, CauseMediaFailure, "system", negErr.Error(),
				int(routing.FailureMediaNegotiation.SIPStatus()))
			return sess, negErr
		}
	}

	e.setBusy(sess, true)
	return sess, nil
}

// Ringing marks the session as alerting. Repeating the call while
// already in Ringing is absorbed without a second event.
func (e *Engine) Ringing(ctx context.Context, callID string) error {
	started := time.Now()
	sess, err := e.get(callID)
	if err != nil {
		return err
	}

	changed, _, err := e.applyTransition(ctx, sess, StateRinging, "alerting", started)
	if err != nil || !changed {
		return err
	}

	e.publish(ctx, e.builder.CallRinging(sess.ID).Build())
	return nil
}

// Answer connects the session. The remote description, when given, is
// applied to the session's negotiator before the state change so the
// connected event only fires with usable media.
func (e *Engine) Answer(ctx context.Context, callID string, remote *media.Description) error {
	started := time.Now()
	sess, err := e.get(callID)
	if err != nil {
		return err
	}

	if remote != nil {
		n := sess.Negotiator()
		if n == nil {
			return fmt.Errorf("session %s has no media negotiator: %w", callID, media.ErrNotInitialized)
		}
		if err := n.SetRemoteDescription(ctx, remote); err != nil {
			return fmt.Errorf("apply remote answer: %w", err)
		}
	}

	changed, _, err := e.applyTransition(ctx, sess, StateConnected, "answered", started)
	if err != nil || !changed {
		return err
	}

	setup, ring, _, _ := sess.Durations()
	ev := e.builder.CallAnswered(sess.ID).
		SetupDuration(setup).
		RingDuration(ring)
	if n := sess.Negotiator(); n != nil {
		ev.Media(&events.MediaInfo{Codecs: media.Names(n.NegotiatedCodecs())})
	}
	e.publish(ctx, ev.Build())
	return nil
}

// Hangup terminates the session. Repeated hangups are no-ops. A hangup
// racing an answer is decided by whichever transition lands first; the
// loser observes the winner's state.
func (e *Engine) Hangup(ctx context.Context, callID, source string, cause EndCause) error {
	sess, err := e.get(callID)
	if err != nil {
		return err
	}
	if cause == CauseNone {
		cause = CauseCallerHangup
	}
	e.terminate(ctx, sess, cause, source, "", 0)
	return nil
}

// StartRecording begins recording a connected call and returns the
// recording ID. Starting twice returns the existing ID.
func (e *Engine) StartRecording(ctx context.Context, callID string) (string, error) {
	sess, err := e.get(callID)
	if err != nil {
		return "", err
	}

	sess.mu.Lock()
	if sess.state != StateConnected {
		state := sess.state
		sess.mu.Unlock()
		return "", fmt.Errorf("cannot record in state %s: %w", state, ErrInvalidTransition)
	}
	if sess.recordingID != "" {
		id := sess.recordingID
		sess.mu.Unlock()
		return id, nil
	}
	id := uuid.New().String()
	sess.recordingID = id
	sess.recordingStarted = time.Now()
	sess.mu.Unlock()

	e.publish(ctx, e.builder.RecordingStarted(sess.ID, id).Build())
	slog.Info("[Engine] Recording started", "call_id", sess.ID, "recording_id", id)
	return id, nil
}

// StopRecording ends an active recording. Stopping when no recording is
// active is a no-op.
func (e *Engine) StopRecording(ctx context.Context, callID string) error {
	sess, err := e.get(callID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	id := sess.recordingID
	startedAt := sess.recordingStarted
	sess.recordingID = ""
	sess.recordingStarted = time.Time{}
	sess.mu.Unlock()

	if id == "" {
		return nil
	}

	e.publish(ctx, e.builder.RecordingStopped(sess.ID, id).
		Duration(time.Since(startedAt)).
		Build())
	slog.Info("[Engine] Recording stopped", "call_id", sess.ID, "recording_id", id)
	return nil
}

// Session returns a registered session by call ID.
func (e *Engine) Session(callID string) (*CallSession, bool) {
	return e.registry.Get(callID)
}

// get fetches a session or reports it unknown.
func (e *Engine) get(callID string) (*CallSession, error) {
	sess, ok := e.registry.Get(callID)
	if !ok {
		return nil, fmt.Errorf("session not found: %s", callID)
	}
	return sess, nil
}

// applyTransition performs a state transition, records its latency and
// publishes the state-changed event. Idempotent repeats return changed
// false with no event.
func (e *Engine) applyTransition(ctx context.Context, sess *CallSession, next CallState, cause string, started time.Time) (bool, CallState, error) {
	changed, prev, err := sess.transition(next)
	if err != nil {
		if sess.IsTerminated() {
			// Both identities stay visible: the race loser matches
			// ErrSessionTerminated and ErrInvalidTransition.
			return false, prev, fmt.Errorf("%w: %w", ErrSessionTerminated, err)
		}
		return false, prev, err
	}
	if !changed {
		return false, prev, nil
	}

	elapsed := time.Since(started)
	e.metrics.ObserveTransition(next.String(), elapsed)
	if elapsed > transitionBudget {
		e.metrics.SlowTransition(next.String())
		slog.Warn("[Engine] Slow state transition",
			"call_id", sess.ID, "next", next.String(), "elapsed", elapsed)
	}
	slog.Info("[Engine] State changed",
		"call_id", sess.ID, "previous", prev.String(), "next", next.String(), "cause", cause)

	e.publish(ctx, e.builder.StateChanged(sess.ID, prev.String(), next.String()).
		Cause(cause).
		Build())
	return true, prev, nil
}

// terminate moves the session to Terminated, releases its resources and
// publishes the ended event. All cleanup completes before returning.
func (e *Engine) terminate(ctx context.Context, sess *CallSession, cause EndCause, source, detail string, status int) {
	started := time.Now()
	changed, _, err := e.applyTransition(ctx, sess, StateTerminated, cause.String(), started)
	if err != nil || !changed {
		return
	}

	sess.markTerminated(cause, source)
	sess.closeMedia()
	e.setBusy(sess, false)
	e.registry.MarkTerminated(sess)
	e.metrics.CallEnded()

	setup, ring, talk, total := sess.Durations()
	e.publish(ctx, e.builder.CallEnded(sess.ID).
		Reason(endReasonForCause(cause), detail).
		Status(status).
		HangupSource(source).
		Durations(setup, ring, talk, total).
		Build())

	slog.Info("[Engine] Call ended",
		"call_id", sess.ID, "cause", cause.String(), "source", source)
}

// setupMedia creates the session's negotiator and local offer for an
// outbound call.
func (e *Engine) setupMedia(ctx context.Context, sess *CallSession, decision *routing.Decision) error {
	if e.newTransport == nil {
		return nil
	}
	transport, err := e.newTransport(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	remoteDialect := media.DialectBrowser
	if decision.Strategy == routing.StrategyBridgeToTrunk {
		remoteDialect = media.DialectTelephony
	}

	n := media.NewNegotiator(media.NegotiatorConfig{
		SessionID:     sess.ID,
		LocalCodecs:   e.cfg.LocalCodecs,
		RemoteDialect: remoteDialect,
		Timeout:       e.cfg.NegotiationTimeout,
	}, transport, e.candidateSink(sess))
	sess.SetNegotiator(n)
	e.attachSpeechDetector(sess, transport)

	offer, err := n.CreateOffer(ctx)
	if err != nil {
		return err
	}

	e.publish(ctx, e.builder.SDPOffer(sess.ID, offer.SDP, offer.Dialect.String()).
		Role(events.RoleCaller).
		Build())
	return nil
}

// answerMedia creates the session's negotiator from a remote offer for
// an inbound call and publishes the local answer.
func (e *Engine) answerMedia(ctx context.Context, sess *CallSession, offer *media.Description) error {
	if e.newTransport == nil {
		return nil
	}
	transport, err := e.newTransport(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	n := media.NewNegotiator(media.NegotiatorConfig{
		SessionID:     sess.ID,
		LocalCodecs:   e.cfg.LocalCodecs,
		RemoteDialect: offer.Dialect,
		Timeout:       e.cfg.NegotiationTimeout,
	}, transport, e.candidateSink(sess))
	sess.SetNegotiator(n)
	e.attachSpeechDetector(sess, transport)

	answer, err := n.CreateAnswer(ctx, offer)
	if err != nil {
		return err
	}

	e.publish(ctx, e.builder.SDPAnswer(sess.ID, answer.SDP, answer.Dialect.String()).
		Role(events.RoleCallee).
		Build())

	// Buffered candidates may flow only once the answer is on the wire,
	// otherwise the relay could deliver them ahead of the description.
	n.ReleaseCandidates()
	return nil
}

// attachSpeechDetector feeds the session's inbound audio into a voice
// activity pipeline. Payload types the pipeline cannot decode are skipped.
func (e *Engine) attachSpeechDetector(sess *CallSession, transport media.Transport) {
	det := vad.NewAdaptiveDetector(vad.DefaultAdaptiveConfig())
	pipe := vad.NewPipeline(vad.DefaultPipelineConfig(), det, func(s vad.State) {
		e.metrics.VADTransition(s.String())
		slog.Debug("[Engine] Speech state", "call_id", sess.ID, "state", s.String())
	})
	sess.SetSpeechPipeline(pipe)

	transport.OnAudioFrame(func(pkt *rtp.Packet) {
		_ = pipe.ProcessPacket(pkt)
	})
}

// candidateSink publishes local transport candidates as events. Candidates
// trickle long after the placing request has returned, so publishing rides
// the session's own context rather than the request context.
func (e *Engine) candidateSink(sess *CallSession) media.CandidateSink {
	return func(c media.Candidate) {
		e.publish(sess.Context(), e.builder.ICECandidate(sess.ID, c.Raw).
			Mid(c.SDPMid, int(c.SDPMLineIndex)).
			Build())
	}
}

// setBusy flags web parties as in-call in the presence store.
func (e *Engine) setBusy(sess *CallSession, busy bool) {
	if e.presence == nil {
		return
	}
	if sess.Caller.Kind == PartyWeb {
		e.presence.SetBusy(sess.Caller.Handle, busy)
	}
	if sess.Callee.Kind == PartyWeb {
		e.presence.SetBusy(sess.Callee.Handle, busy)
	}
}

// publish delivers an event, logging transport failures.
func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.publisher.Publish(ctx, ev); err != nil {
		slog.Warn("[Engine] Event publish failed", "type", ev.Type(), "call_id", ev.CallID(), "error", err)
	}
}

// causeForFailure maps a routing failure onto a termination cause.
func causeForFailure(r routing.FailureReason) EndCause {
	switch r {
	case routing.FailureNotFound, routing.FailureTargetOffline, routing.FailureTargetUnreachable:
		return CauseUnavailable
	case routing.FailureTargetBusy:
		return CauseBusy
	case routing.FailureDeclined:
		return CauseDeclined
	case routing.FailureTimeout:
		return CauseTimeout
	case routing.FailureMediaNegotiation:
		return CauseMediaFailure
	case routing.FailureCancelled:
		return CauseCancelled
	default:
		return CauseError
	}
}

// endReasonForCause maps a termination cause onto the event taxonomy.
func endReasonForCause(c EndCause) events.EndReason {
	switch c {
	case CauseCallerHangup, CauseCalleeHangup:
		return events.EndReasonNormal
	case CauseCancelled:
		return events.EndReasonCancelled
	case CauseDeclined:
		return events.EndReasonDeclined
	case CauseBusy:
		return events.EndReasonBusy
	case CauseNoAnswer:
		return events.EndReasonNoAnswer
	case CauseUnavailable:
		return events.EndReasonUnavailable
	case CauseMediaFailure:
		return events.EndReasonMediaError
	case CauseTimeout:
		return events.EndReasonTimeout
	default:
		return events.EndReasonError
	}
}
