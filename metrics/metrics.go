package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeApplied  = "applied"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
)

// GateMetrics counts the writes and signals the gate stack performs.
type GateMetrics struct {
	transitions    *prometheus.CounterVec
	trackerEvents  *prometheus.CounterVec
	relaySignals   *prometheus.CounterVec
	feedPublishErr prometheus.Counter
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *GateMetrics {
	m := &GateMetrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "gate",
				Name:      "status_transitions_total",
				Help:      "Conditional subscription status writes by transition and outcome",
			},
			[]string{"transition", "outcome"},
		),
		trackerEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "gate",
				Name:      "tracker_events_total",
				Help:      "Onboarding task counter writes by task and outcome",
			},
			[]string{"task", "outcome"},
		),
		relaySignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "gate",
				Name:      "relay_signals_total",
				Help:      "Store change notifications forwarded to gate sessions by outcome",
			},
			[]string{"outcome"},
		),
		feedPublishErr: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "gate",
				Name:      "feed_publish_errors_total",
				Help:      "Store change notifications that could not be published",
			},
		),
	}
	reg.MustRegister(m.transitions, m.trackerEvents, m.relaySignals, m.feedPublishErr)
	return m
}

// NewNop returns metrics registered on a throwaway registry.
func NewNop() *GateMetrics {
	return New(prometheus.NewRegistry())
}

// Record methods are no-ops on a nil *GateMetrics.
func (m *GateMetrics) RecordTransition(transition, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(transition, outcome).Inc()
}

func (m *GateMetrics) RecordTrackerEvent(task, outcome string) {
	if m == nil {
		return
	}
	m.trackerEvents.WithLabelValues(task, outcome).Inc()
}

func (m *GateMetrics) RecordRelaySignal(outcome string) {
	if m == nil {
		return
	}
	m.relaySignals.WithLabelValues(outcome).Inc()
}

func (m *GateMetrics) RecordFeedPublishError() {
	if m == nil {
		return
	}
	m.feedPublishErr.Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes g on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
