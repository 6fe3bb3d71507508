package counter

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// GossipOutbound is the total number of counter gossip messages sent.
	GossipOutbound prometheus.Counter

	// GossipInbound is the total number of counter gossip messages
	// received.
	GossipInbound prometheus.Counter

	// StaleEntries is the total number of received entries that were not
	// greater than the entry already held.
	StaleEntries prometheus.Counter

	// SendErrors is the total number of counter gossip messages that failed
	// to send.
	SendErrors prometheus.Counter

	// Value is the counter value of each node, labelled by node ID.
	Value *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		GossipOutbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "counter",
				Name:      "gossip_outbound_total",
				Help:      "Total number of counter gossip messages sent",
			},
		),
		GossipInbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "counter",
				Name:      "gossip_inbound_total",
				Help:      "Total number of counter gossip messages received",
			},
		),
		StaleEntries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "counter",
				Name:      "stale_entries_total",
				Help:      "Total number of received counter entries that were not newer",
			},
		),
		SendErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "counter",
				Name:      "send_errors_total",
				Help:      "Total number of counter gossip messages that failed to send",
			},
		),
		Value: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "glomers",
				Subsystem: "counter",
				Name:      "value",
				Help:      "Counter value",
			},
			[]string{"node_id"},
		),
	}
}

func (m *Metrics) Register(registry *prometheus.Registry) {
	registry.MustRegister(
		m.GossipOutbound,
		m.GossipInbound,
		m.StaleEntries,
		m.SendErrors,
		m.Value,
	)
}
