package application

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Hits       prometheus.Counter
	Provisions prometheus.Counter
	Failures   prometheus.Counter
	Evictions  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	const namespace, subsystem = "commerce", "tenant_registry"
	return &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_hits_total",
			Help:      "Resolves served from a cached live handle.",
		}),
		Provisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "provisions_total",
			Help:      "Completed provisioning sequences.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "provision_failures_total",
			Help:      "Provisioning sequences that returned an error.",
		}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evictions_total",
			Help:      "Handles removed from the cache, by reason.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{m.Hits, m.Provisions, m.Failures, m.Evictions}
}
