package routing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sebas/voicebridge/internal/gateway/presence"
)

// Strategy names how a call leg should be set up once the destination
// is classified and its reachability is known.
type Strategy int

const (
	// StrategyNone means routing failed and no leg should be set up.
	StrategyNone Strategy = iota
	// StrategyDirectWeb connects two web endpoints through the media layer.
	StrategyDirectWeb
	// StrategyBridgeToTrunk sends the leg to the telephony trunk.
	StrategyBridgeToTrunk
	// StrategyNotifyWebUser delivers an inbound call to a registered web user.
	StrategyNotifyWebUser
)

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyDirectWeb:
		return "DirectWeb"
	case StrategyBridgeToTrunk:
		return "BridgeToTrunk"
	case StrategyNotifyWebUser:
		return "NotifyWebUser"
	default:
		return "None"
	}
}

// Decision is the outcome of routing one call attempt. Exactly one of
// Failure or Strategy is meaningful: when Failure is non-nil the
// strategy is StrategyNone.
type Decision struct {
	Target   Target
	Strategy Strategy
	// TrunkAddress is set for StrategyBridgeToTrunk.
	TrunkAddress string
	// Binding is set for StrategyDirectWeb and StrategyNotifyWebUser.
	Binding *presence.Binding
	Failure *RoutingFailure
}

// Failed reports whether the decision carries a failure.
func (d *Decision) Failed() bool {
	return d.Failure != nil
}

// Directory is the presence view the router consults for web targets.
type Directory interface {
	Lookup(handle string) []*presence.Binding
	LookupOne(handle string) *presence.Binding
	IsBusy(handle string) bool
}

// Config configures a Router.
type Config struct {
	// TrunkAddress is where telephone-bound legs are bridged.
	TrunkAddress string
	// LookupTimeout bounds a single presence lookup.
	LookupTimeout time.Duration
	// ClassifyCacheSize bounds the classification cache. Zero disables it.
	ClassifyCacheSize int
	// ClassifyCacheTTL expires cached classifications.
	ClassifyCacheTTL time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		LookupTimeout:     2 * time.Second,
		ClassifyCacheSize: 1024,
		ClassifyCacheTTL:  5 * time.Minute,
	}
}

// Router classifies destinations and decides how each call leg is set up.
type Router struct {
	cfg       Config
	directory Directory

	// classifyCache remembers recent dial string classifications.
	classifyCache *expirable.LRU[string, Target]
}

// NewRouter creates a router backed by the given presence directory.
func NewRouter(cfg Config, directory Directory) *Router {
	r := &Router{
		cfg:       cfg,
		directory: directory,
	}
	if cfg.ClassifyCacheSize > 0 {
		r.classifyCache = expirable.NewLRU[string, Target](cfg.ClassifyCacheSize, nil, cfg.ClassifyCacheTTL)
	}
	return r
}

// classify resolves a dialed string, consulting the cache first.
func (r *Router) classify(dialed string) (Target, error) {
	if r.classifyCache != nil {
		if t, ok := r.classifyCache.Get(dialed); ok {
			return t, nil
		}
	}
	t, err := Classify(dialed)
	if err != nil {
		return Target{}, err
	}
	if r.classifyCache != nil {
		r.classifyCache.Add(dialed, t)
	}
	return t, nil
}

// RouteOutbound decides how a web caller's attempt to reach dialed is
// set up. Caller identity must be non-empty. Failures that belong to
// the routing taxonomy come back inside the Decision; only malformed
// input is returned as a plain error.
func (r *Router) RouteOutbound(ctx context.Context, caller, dialed string) (*Decision, error) {
	if caller == "" {
		return nil, fmt.Errorf("%w: caller must be set", ErrInvalidCaller)
	}

	target, err := r.classify(dialed)
	if err != nil {
		return nil, err
	}

	switch target.Kind {
	case TargetTelephone:
		if r.cfg.TrunkAddress == "" {
			return r.failed(target, &RoutingFailure{
				Reason:  FailureServerError,
				Target:  target.Handle(),
				Message: "no telephony trunk configured",
			}), nil
		}
		slog.Debug("[ROUTER] Outbound to trunk", "caller", caller, "number", target.Number)
		return &Decision{
			Target:       target,
			Strategy:     StrategyBridgeToTrunk,
			TrunkAddress: r.cfg.TrunkAddress,
		}, nil

	case TargetWeb:
		binding, failure := r.lookupWeb(ctx, target)
		if failure != nil {
			return r.failed(target, failure), nil
		}
		slog.Debug("[ROUTER] Outbound direct web", "caller", caller, "target", target.Handle())
		return &Decision{
			Target:   target,
			Strategy: StrategyDirectWeb,
			Binding:  binding,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unclassifiable destination %q", ErrInvalidCaller, dialed)
	}
}

// RouteInbound decides how a call arriving from the telephone network
// reaches the web user identified by toHandle.
func (r *Router) RouteInbound(ctx context.Context, fromNumber, toHandle string) (*Decision, error) {
	target, err := r.classify(toHandle)
	if err != nil {
		return nil, err
	}
	if target.Kind != TargetWeb {
		return nil, fmt.Errorf("%w: inbound destination %q is not a web user", ErrInvalidCaller, toHandle)
	}

	binding, failure := r.lookupWeb(ctx, target)
	if failure != nil {
		return r.failed(target, failure), nil
	}

	slog.Debug("[ROUTER] Inbound to web user", "from", fromNumber, "target", target.Handle())
	return &Decision{
		Target:   target,
		Strategy: StrategyNotifyWebUser,
		Binding:  binding,
	}, nil
}

// lookupWeb resolves a web target against the presence directory,
// bounded by the configured lookup timeout.
func (r *Router) lookupWeb(ctx context.Context, target Target) (*presence.Binding, *RoutingFailure) {
	if r.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.LookupTimeout)
		defer cancel()
	}

	handle := target.Handle()

	type lookupResult struct {
		binding *presence.Binding
		busy    bool
	}
	done := make(chan lookupResult, 1)
	go func() {
		done <- lookupResult{
			binding: r.directory.LookupOne(handle),
			busy:    r.directory.IsBusy(handle),
		}
	}()

	select {
	case <-ctx.Done():
		return nil, &RoutingFailure{
			Reason: FailureTimeout,
			Target: handle,
			Cause:  ErrLookupTimeout,
		}
	case res := <-done:
		if res.binding == nil {
			return nil, &RoutingFailure{
				Reason:  FailureTargetOffline,
				Target:  handle,
				Message: "no active registration",
			}
		}
		if res.busy {
			return nil, &RoutingFailure{
				Reason:  FailureTargetBusy,
				Target:  handle,
				Message: "already in a call",
			}
		}
		return res.binding, nil
	}
}

func (r *Router) failed(target Target, failure *RoutingFailure) *Decision {
	slog.Info("[ROUTER] Routing failed",
		"target", failure.Target,
		"reason", failure.Reason.String(),
		"status", int(failure.Reason.SIPStatus()),
	)
	return &Decision{
		Target:   target,
		Strategy: StrategyNone,
		Failure:  failure,
	}
}
