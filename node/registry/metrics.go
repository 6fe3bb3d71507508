package registry

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// Nodes is the number of registered nodes.
	Nodes prometheus.Gauge

	// Poisoned is 1 if the registry lock is unavailable.
	Poisoned prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Nodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "glomers",
				Subsystem: "registry",
				Name:      "nodes",
				Help:      "Number of registered nodes",
			},
		),
		Poisoned: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "glomers",
				Subsystem: "registry",
				Name:      "poisoned",
				Help:      "Whether the registry lock is unavailable",
			},
		),
	}
}

func (m *Metrics) Register(registry *prometheus.Registry) {
	registry.MustRegister(
		m.Nodes,
		m.Poisoned,
	)
}
