package txn

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// Applied is the total number of transactions applied.
	Applied prometheus.Counter

	// Rejected is the total number of malformed transactions.
	Rejected prometheus.Counter

	// Ops is the total number of applied operations, labelled by kind.
	Ops *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Applied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "txn",
				Name:      "applied_total",
				Help:      "Total number of transactions applied",
			},
		),
		Rejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "txn",
				Name:      "rejected_total",
				Help:      "Total number of malformed transactions",
			},
		),
		Ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "txn",
				Name:      "ops_total",
				Help:      "Total number of applied operations",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) Register(registry *prometheus.Registry) {
	registry.MustRegister(
		m.Applied,
		m.Rejected,
		m.Ops,
	)
}
