package routing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebas/voicebridge/internal/gateway/presence"
)

// stubDirectory is a canned presence view.
type stubDirectory struct {
	bindings map[string]*presence.Binding
	busy     map[string]bool
	delay    time.Duration
}

func (d *stubDirectory) Lookup(handle string) []*presence.Binding {
	if b := d.LookupOne(handle); b != nil {
		return []*presence.Binding{b}
	}
	return nil
}

func (d *stubDirectory) LookupOne(handle string) *presence.Binding {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	return d.bindings[handle]
}

func (d *stubDirectory) IsBusy(handle string) bool {
	return d.busy[handle]
}

func newTestRouter(dir *stubDirectory, trunk string) *Router {
	cfg := DefaultConfig()
	cfg.TrunkAddress = trunk
	return NewRouter(cfg, dir)
}

func TestRouteOutboundTelephoneBridgesToTrunk(t *testing.T) {
	r := newTestRouter(&stubDirectory{}, "10.20.30.40:5060")

	decision, err := r.RouteOutbound(context.Background(), "alice@example.com", "+14155550100")
	require.NoError(t, err)
	require.False(t, decision.Failed())

	assert.Equal(t, StrategyBridgeToTrunk, decision.Strategy)
	assert.Equal(t, "10.20.30.40:5060", decision.TrunkAddress)
	assert.Equal(t, "+14155550100", decision.Target.Number)
}

func TestRouteOutboundTelephoneWithoutTrunk(t *testing.T) {
	r := newTestRouter(&stubDirectory{}, "")

	decision, err := r.RouteOutbound(context.Background(), "alice@example.com", "+14155550100")
	require.NoError(t, err)
	require.True(t, decision.Failed())

	assert.Equal(t, StrategyNone, decision.Strategy)
	assert.Equal(t, FailureServerError, decision.Failure.Reason)
}

func TestRouteOutboundWebRegistered(t *testing.T) {
	binding := &presence.Binding{Handle: "bob@example.com", ConnectionID: "conn-1"}
	r := newTestRouter(&stubDirectory{
		bindings: map[string]*presence.Binding{"bob@example.com": binding},
	}, "")

	decision, err := r.RouteOutbound(context.Background(), "alice@example.com", "bob@example.com")
	require.NoError(t, err)
	require.False(t, decision.Failed())

	assert.Equal(t, StrategyDirectWeb, decision.Strategy)
	assert.Same(t, binding, decision.Binding)
}

func TestRouteOutboundWebOffline(t *testing.T) {
	r := newTestRouter(&stubDirectory{}, "")

	decision, err := r.RouteOutbound(context.Background(), "alice@example.com", "bob@example.com")
	require.NoError(t, err)
	require.True(t, decision.Failed())

	assert.Equal(t, FailureTargetOffline, decision.Failure.Reason)
	assert.False(t, decision.Failure.Reason.Retryable(), "offline is final, no automatic retry")
}

func TestRouteOutboundWebBusy(t *testing.T) {
	r := newTestRouter(&stubDirectory{
		bindings: map[string]*presence.Binding{"bob@example.com": {Handle: "bob@example.com"}},
		busy:     map[string]bool{"bob@example.com": true},
	}, "")

	decision, err := r.RouteOutbound(context.Background(), "alice@example.com", "bob@example.com")
	require.NoError(t, err)
	require.True(t, decision.Failed())

	assert.Equal(t, FailureTargetBusy, decision.Failure.Reason)
}

func TestRouteOutboundLookupTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LookupTimeout = 5 * time.Millisecond
	r := NewRouter(cfg, &stubDirectory{delay: 200 * time.Millisecond})

	decision, err := r.RouteOutbound(context.Background(), "alice@example.com", "bob@example.com")
	require.NoError(t, err)
	require.True(t, decision.Failed())

	assert.Equal(t, FailureTimeout, decision.Failure.Reason)
	assert.ErrorIs(t, decision.Failure, ErrLookupTimeout)
	assert.True(t, decision.Failure.Reason.Retryable())
}

func TestRouteOutboundRequiresCaller(t *testing.T) {
	r := newTestRouter(&stubDirectory{}, "")

	_, err := r.RouteOutbound(context.Background(), "", "+14155550100")
	assert.ErrorIs(t, err, ErrInvalidCaller)
}

func TestRouteOutboundRejectsGarbage(t *testing.T) {
	r := newTestRouter(&stubDirectory{}, "")

	_, err := r.RouteOutbound(context.Background(), "alice@example.com", "!!!")
	assert.ErrorIs(t, err, ErrInvalidCaller)
}

func TestRouteInboundNotifiesWebUser(t *testing.T) {
	binding := &presence.Binding{Handle: "bob@example.com"}
	r := newTestRouter(&stubDirectory{
		bindings: map[string]*presence.Binding{"bob@example.com": binding},
	}, "")

	decision, err := r.RouteInbound(context.Background(), "+14155550100", "bob@example.com")
	require.NoError(t, err)
	require.False(t, decision.Failed())

	assert.Equal(t, StrategyNotifyWebUser, decision.Strategy)
	assert.Same(t, binding, decision.Binding)
}

func TestRouteInboundRejectsTelephoneDestination(t *testing.T) {
	r := newTestRouter(&stubDirectory{}, "")

	_, err := r.RouteInbound(context.Background(), "+14155550100", "+14155550199")
	assert.ErrorIs(t, err, ErrInvalidCaller)
}
