// Package metrics exports Prometheus instrumentation for the call engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus collectors. All operations
// are safe for concurrent use.
type Metrics struct {
	callsTotal     *prometheus.CounterVec
	activeSessions prometheus.Gauge

	// transitionLatency observes observable state transition latency.
	// The 0.5s bucket edge marks the interactive budget.
	transitionLatency *prometheus.HistogramVec
	slowTransitions   *prometheus.CounterVec

	routingOutcomes     *prometheus.CounterVec
	negotiationFailures prometheus.Counter
	vadTransitions      *prometheus.CounterVec
}

// New registers the gateway collectors with the given registerer.
// Pass prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicebridge",
			Subsystem: "calls",
			Name:      "total",
			Help:      "Total number of call sessions created, by direction",
		}, []string{"direction"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "voicebridge",
			Subsystem: "calls",
			Name:      "active",
			Help:      "Number of currently active call sessions",
		}),

		transitionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voicebridge",
			Subsystem: "calls",
			Name:      "transition_latency_seconds",
			Help:      "Latency from intent to observable state transition",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"transition"}),

		slowTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicebridge",
			Subsystem: "calls",
			Name:      "slow_transitions_total",
			Help:      "State transitions exceeding the interactive latency budget",
		}, []string{"transition"}),

		routingOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicebridge",
			Subsystem: "routing",
			Name:      "outcomes_total",
			Help:      "Routing decisions by strategy or failure reason",
		}, []string{"outcome"}),

		negotiationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "voicebridge",
			Subsystem: "media",
			Name:      "negotiation_failures_total",
			Help:      "Media negotiations that produced no usable codec",
		}),

		vadTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicebridge",
			Subsystem: "vad",
			Name:      "transitions_total",
			Help:      "Voice activity state transitions by direction",
		}, []string{"to"}),
	}
}

// CallStarted records a new session.
func (m *Metrics) CallStarted(direction string) {
	m.callsTotal.WithLabelValues(direction).Inc()
	m.activeSessions.Inc()
}

// CallEnded records a terminated session.
func (m *Metrics) CallEnded() {
	m.activeSessions.Dec()
}

// ObserveTransition records the latency of one state transition.
func (m *Metrics) ObserveTransition(transition string, d time.Duration) {
	m.transitionLatency.WithLabelValues(transition).Observe(d.Seconds())
}

// SlowTransition records a transition that missed the latency budget.
func (m *Metrics) SlowTransition(transition string) {
	m.slowTransitions.WithLabelValues(transition).Inc()
}

// RoutingOutcome records a routing decision outcome.
func (m *Metrics) RoutingOutcome(outcome string) {
	m.routingOutcomes.WithLabelValues(outcome).Inc()
}

// NegotiationFailed records a failed media negotiation.
func (m *Metrics) NegotiationFailed() {
	m.negotiationFailures.Inc()
}

// VADTransition records a voice-activity state flip.
func (m *Metrics) VADTransition(to string) {
	m.vadTransitions.WithLabelValues(to).Inc()
}

// Nop returns a Metrics backed by a throwaway registry. Useful in tests
// and when metrics are disabled.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
