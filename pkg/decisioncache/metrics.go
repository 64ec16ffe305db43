package decisioncache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the cache counters, labeled by cache name so the
// entitlement and RBAC caches share one registration.
type Metrics struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
}

// NewMetrics creates and registers the cache metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accessgate_cache_hits_total",
				Help: "Total number of decision cache hits",
			},
			[]string{"cache"},
		),
		misses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accessgate_cache_misses_total",
				Help: "Total number of decision cache misses",
			},
			[]string{"cache"},
		),
		evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accessgate_cache_evictions_total",
				Help: "Total number of decision cache evictions",
			},
			[]string{"cache"},
		),
	}

	if registry != nil {
		registry.MustRegister(m.hits, m.misses, m.evictions)
	}
	return m
}
