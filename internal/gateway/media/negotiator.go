package media

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultNegotiationTimeout bounds transport calls that suspend on ICE
// gathering or the DTLS handshake.
const DefaultNegotiationTimeout = 10 * time.Second

// NegotiatorConfig configures one negotiation context.
type NegotiatorConfig struct {
	SessionID string
	// LocalCodecs is what this side supports, in preference order.
	LocalCodecs []Codec
	// RemoteDialect is the dialect of the far side: telephony when the call
	// bridges to a gateway, browser for web-to-web.
	RemoteDialect Dialect
	// Timeout bounds individual transport operations.
	Timeout time.Duration
}

// Negotiator owns the SDP offer/answer exchange and ICE candidate buffering
// for exactly one call session. At most one offer/answer pair is in flight
// at a time.
//
// Local candidates discovered before the exchange completes are held in an
// ordered pending queue; once the local description has been handed to the
// signaling channel the queue drains FIFO to the candidate sink and is
// cleared. Candidates are never dropped and never flushed twice, and none
// reaches the relay ahead of the description it belongs to.
type Negotiator struct {
	mu        sync.Mutex
	cfg       NegotiatorConfig
	transport Transport
	sink      CandidateSink

	local      *Description
	remote     *Description
	pending    []Candidate
	complete   bool
	released   bool
	draining   bool
	closed     bool
	negotiated []Codec
}

// NewNegotiator creates a negotiation context over the given transport
// session. transport may be nil, in which case every operation fails with
// ErrNotInitialized until a session is attached.
func NewNegotiator(cfg NegotiatorConfig, transport Transport, sink CandidateSink) *Negotiator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultNegotiationTimeout
	}
	if len(cfg.LocalCodecs) == 0 {
		cfg.LocalCodecs = BrowserCodecs
	}
	n := &Negotiator{
		cfg:       cfg,
		transport: transport,
		sink:      sink,
	}
	if transport != nil {
		transport.OnLocalCandidate(n.handleLocalCandidate)
	}
	return n
}

// CreateOffer produces the local offer. When the remote side is a telephony
// gateway, the offer is normalized into the telephony dialect and must
// advertise at least one narrowband codec.
func (n *Negotiator) CreateOffer(ctx context.Context) (*Description, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.checkTransportLocked(); err != nil {
		return nil, err
	}
	if n.local != nil {
		return nil, fmt.Errorf("%w: offer already in flight", ErrInvalidState)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	raw, err := n.transport.CreateLocalOffer(ctx)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}

	desc, err := Parse(TypeOffer, raw)
	if err != nil {
		return nil, err
	}

	if n.cfg.RemoteDialect == DialectTelephony {
		desc, err = Normalize(desc, DialectTelephony, n.cfg.LocalCodecs)
		if err != nil {
			return nil, err
		}
	}

	n.local = desc
	return desc, nil
}

// CreateAnswer applies the remote offer and produces the local answer,
// completing the exchange. Pending candidates stay queued until the caller
// has delivered the answer to signaling and calls ReleaseCandidates, so no
// candidate can overtake the description it belongs to.
func (n *Negotiator) CreateAnswer(ctx context.Context, remote *Description) (*Description, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.checkTransportLocked(); err != nil {
		return nil, err
	}
	if remote == nil {
		return nil, fmt.Errorf("%w: nil remote description", ErrInvalidArgument)
	}
	if remote.Type != TypeOffer {
		return nil, fmt.Errorf("%w: answer requires a remote offer", ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	if err := n.applyRemoteLocked(ctx, remote); err != nil {
		return nil, err
	}

	raw, err := n.transport.CreateLocalAnswer(ctx)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}

	desc, err := Parse(TypeAnswer, raw)
	if err != nil {
		return nil, err
	}

	// The answer toward a telephony party must speak that party's dialect.
	if remote.Dialect == DialectTelephony {
		desc, err = Normalize(desc, DialectTelephony, n.cfg.LocalCodecs)
		if err != nil {
			return nil, err
		}
	}

	n.local = desc
	n.negotiated = Intersect(desc.Codecs, remote.Codecs)
	n.markCompleteLocked()
	return desc, nil
}

// SetRemoteDescription applies the far side's description. A remote answer
// arriving for a local offer finalizes the negotiation and flushes pending
// candidates.
func (n *Negotiator) SetRemoteDescription(ctx context.Context, desc *Description) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if desc == nil || desc.SDP == "" {
		return fmt.Errorf("%w: nil or empty description", ErrInvalidArgument)
	}
	if err := n.checkTransportLocked(); err != nil {
		// A missing transport session is a state error here, not an
		// initialization error on the description itself.
		return fmt.Errorf("%w: no local transport session", ErrInvalidState)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	if err := n.applyRemoteLocked(ctx, desc); err != nil {
		return err
	}

	if desc.Type == TypeAnswer && n.local != nil {
		n.negotiated = Intersect(n.local.Codecs, desc.Codecs)
		n.markCompleteLocked()
		// The local offer went out to signaling before the answer could
		// arrive, so the backlog can flow immediately.
		n.releaseLocked()
	}
	return nil
}

// applyRemoteLocked normalizes a telephony-dialect description into the
// local browser dialect's expectations before handing it to the transport.
func (n *Negotiator) applyRemoteLocked(ctx context.Context, desc *Description) error {
	applied := desc
	if desc.Dialect == DialectTelephony {
		normalized, err := Normalize(desc, DialectBrowser, n.cfg.LocalCodecs)
		if err != nil {
			return err
		}
		applied = normalized
	}

	if err := n.transport.SetRemoteDescription(ctx, applied.Type, applied.SDP); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	n.remote = desc
	return nil
}

// AddRemoteCandidate feeds a candidate from the far side into the transport.
func (n *Negotiator) AddRemoteCandidate(c Candidate) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.checkTransportLocked(); err != nil {
		return err
	}
	if err := n.transport.AddRemoteCandidate(c); err != nil {
		return fmt.Errorf("add remote candidate: %w", err)
	}
	return nil
}

// handleLocalCandidate receives candidates discovered by the transport.
// Before the backlog is released (and while it is still draining) they are
// queued in arrival order; afterwards they pass straight through to the sink.
func (n *Negotiator) handleLocalCandidate(c Candidate) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	if !n.released || n.draining {
		n.pending = append(n.pending, c)
		n.mu.Unlock()
		return
	}
	sink := n.sink
	n.mu.Unlock()

	if sink != nil {
		sink(c)
	}
}

// markCompleteLocked transitions to the completed state. Candidates keep
// queuing until the backlog is released.
func (n *Negotiator) markCompleteLocked() {
	n.complete = true
}

// ReleaseCandidates opens the candidate path once the local description has
// been handed to signaling. A no-op until the exchange completes, and on
// repeated calls.
func (n *Negotiator) ReleaseCandidates() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || !n.complete {
		return
	}
	n.releaseLocked()
}

// releaseLocked starts the FIFO drain of the pending queue. Candidates are
// popped one at a time under the lock, so none can flush twice and arrival
// order is preserved even for candidates that show up mid-drain.
func (n *Negotiator) releaseLocked() {
	if n.released {
		return
	}
	n.released = true
	if n.sink == nil {
		n.pending = nil
		return
	}
	if len(n.pending) > 0 {
		slog.Debug("[Media] Flushing buffered candidates",
			"session_id", n.cfg.SessionID,
			"count", len(n.pending),
		)
	}
	n.draining = true
	// Drain outside the lock: the sink may call back into the session.
	go n.drainPending()
}

func (n *Negotiator) drainPending() {
	for {
		n.mu.Lock()
		if n.closed || len(n.pending) == 0 {
			n.draining = false
			n.mu.Unlock()
			return
		}
		c := n.pending[0]
		n.pending = n.pending[1:]
		sink := n.sink
		n.mu.Unlock()

		sink(c)
	}
}

// Complete reports whether the offer/answer exchange has finished.
func (n *Negotiator) Complete() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.complete
}

// NegotiatedCodecs returns the codec intersection agreed by both sides.
func (n *Negotiator) NegotiatedCodecs() []Codec {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Codec, len(n.negotiated))
	copy(out, n.negotiated)
	return out
}

// LocalDescription returns the current local description, if any.
func (n *Negotiator) LocalDescription() *Description {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.local
}

// RemoteDescription returns the current remote description, if any.
func (n *Negotiator) RemoteDescription() *Description {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.remote
}

// PendingCandidates returns a snapshot of the buffered queue, for stats.
func (n *Negotiator) PendingCandidates() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// Close releases the description pair, the pending queue and the transport
// session. Safe to call more than once.
func (n *Negotiator) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.local = nil
	n.remote = nil
	n.pending = nil
	transport := n.transport
	n.mu.Unlock()

	if transport != nil {
		return transport.Close()
	}
	return nil
}

func (n *Negotiator) checkTransportLocked() error {
	if n.closed {
		return ErrClosed
	}
	if n.transport == nil {
		return ErrNotInitialized
	}
	return nil
}
