package gate

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/finsuite/accessgate/pkg/audit"
)

// Metrics holds the decision counters and timings.
type Metrics struct {
	decisions *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	trials    prometheus.Counter
}

// NewMetrics creates and registers the gate metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accessgate_decisions_total",
				Help: "Total number of access decisions by outcome and denying layer",
			},
			[]string{"outcome", "layer"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accessgate_decision_duration_seconds",
				Help:    "Access decision latency",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"outcome"},
		),
		trials: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "accessgate_trial_allows_total",
				Help: "Total number of allows granted under a trial entitlement",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(m.decisions, m.duration, m.trials)
	}
	return m
}

func (m *Metrics) observe(outcome audit.Outcome, layer audit.Layer, seconds float64, trial bool) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(outcome), string(layer)).Inc()
	m.duration.WithLabelValues(string(outcome)).Observe(seconds)
	if trial {
		m.trials.Inc()
	}
}
