// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the launchpad's Prometheus metrics. It implements
// launchpad.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	Transitions          *prometheus.CounterVec
	ContributedTotal     prometheus.Counter
	ClaimedTotal         prometheus.Counter
	FatalInconsistencies *prometheus.CounterVec
	StreamSubscribers    prometheus.Gauge
}

// NewMetrics registers every metric on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "launchpad"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "transitions_total",
			Help:      "Pool transitions by operation and result code",
		}, []string{"op", "code"}),
		ContributedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "contributed_value_total",
			Help:      "Total contribution value accepted",
		}),
		ClaimedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vesting",
			Name:      "claimed_units_total",
			Help:      "Total asset units disbursed by claims",
		}),
		FatalInconsistencies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "fatal_inconsistencies_total",
			Help:      "Transitions that moved value without a matching record",
		}, []string{"op"}),
		StreamSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "stream_subscribers",
			Help:      "Connected event stream clients",
		}),
	}
}

func (m *Metrics) TransitionCompleted(op, code string) {
	m.Transitions.WithLabelValues(op, code).Inc()
}

func (m *Metrics) Invested(amount uint64) {
	m.ContributedTotal.Add(float64(amount))
}

func (m *Metrics) Claimed(amount uint64) {
	m.ClaimedTotal.Add(float64(amount))
}

func (m *Metrics) FatalInconsistency(op string) {
	m.FatalInconsistencies.WithLabelValues(op).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
