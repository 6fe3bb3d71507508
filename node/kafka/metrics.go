package kafka

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// Appended is the total number of entries appended.
	Appended prometheus.Counter

	// Polled is the total number of entries returned by polls.
	Polled prometheus.Counter

	// Commits is the total number of committed offsets that advanced.
	Commits prometheus.Counter

	// StaleCommits is the total number of committed offsets ignored as not
	// greater than the offset already committed.
	StaleCommits prometheus.Counter

	// Entries is the number of log entries held by each node, labelled by
	// node ID.
	Entries *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Appended: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "kafka",
				Name:      "appended_total",
				Help:      "Total number of log entries appended",
			},
		),
		Polled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "kafka",
				Name:      "polled_total",
				Help:      "Total number of log entries returned by polls",
			},
		),
		Commits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "kafka",
				Name:      "commits_total",
				Help:      "Total number of committed offsets that advanced",
			},
		),
		StaleCommits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "kafka",
				Name:      "stale_commits_total",
				Help:      "Total number of committed offsets ignored as stale",
			},
		),
		Entries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "glomers",
				Subsystem: "kafka",
				Name:      "entries",
				Help:      "Number of log entries",
			},
			[]string{"node_id"},
		),
	}
}

func (m *Metrics) Register(registry *prometheus.Registry) {
	registry.MustRegister(
		m.Appended,
		m.Polled,
		m.Commits,
		m.StaleCommits,
		m.Entries,
	)
}
