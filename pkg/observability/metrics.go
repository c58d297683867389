package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the dispatch collectors.
type Metrics struct {
	registry *prometheus.Registry

	dispatches *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inflight   *prometheus.GaugeVec
}

// NewMetrics creates collectors registered on a private registry, so several
// servers (or tests) can coexist in one process.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "switchboard",
				Subsystem: "dispatch",
				Name:      "total",
				Help:      "Total dispatched requests by action, transport and outcome.",
			},
			[]string{"action", "transport", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "switchboard",
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "Duration of dispatches in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action", "transport"},
		),
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "switchboard",
				Subsystem: "dispatch",
				Name:      "inflight",
				Help:      "Dispatches currently in progress.",
			},
			[]string{"transport"},
		),
	}
	m.registry.MustRegister(
		m.dispatches,
		m.duration,
		m.inflight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Hooks returns lifecycle hooks recording every dispatch.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(_ context.Context, e *domain.DispatchEvent) {
			m.inflight.WithLabelValues(e.Transport).Inc()
		},
		OnComplete: func(_ context.Context, e *domain.DispatchEvent) {
			m.inflight.WithLabelValues(e.Transport).Dec()
			// Unknown names are caller-controlled; keep label cardinality bounded.
			action := e.Action
			if e.Outcome == domain.Outcome(domain.KindActionNotFound) || e.Outcome == domain.Outcome(domain.KindMalformedRequest) {
				action = "_unknown"
			}
			m.dispatches.WithLabelValues(action, e.Transport, string(e.Outcome)).Inc()
			m.duration.WithLabelValues(action, e.Transport).Observe(e.Duration.Seconds())
		},
	}
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
