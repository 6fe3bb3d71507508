package broadcast

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// GossipOutbound is the total number of gossip messages sent.
	GossipOutbound prometheus.Counter

	// GossipInbound is the total number of gossip messages received,
	// labelled by type ('gossip' or 'gossip_ok').
	GossipInbound *prometheus.CounterVec

	// DuplicatesDropped is the total number of received gossip messages
	// whose origin was already seen.
	DuplicatesDropped prometheus.Counter

	// RoundsSent is the total number of dissemination rounds, labelled by
	// trigger ('tick', 'resync' or 'forward').
	RoundsSent *prometheus.CounterVec

	// RoundsSkipped is the total number of ticks skipped since the value set
	// was unchanged.
	RoundsSkipped prometheus.Counter

	// SendErrors is the total number of gossip messages that failed to send.
	SendErrors prometheus.Counter

	// Values is the size of each nodes value set, labelled by node ID.
	Values *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		GossipOutbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "broadcast",
				Name:      "gossip_outbound_total",
				Help:      "Total number of gossip messages sent",
			},
		),
		GossipInbound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "broadcast",
				Name:      "gossip_inbound_total",
				Help:      "Total number of gossip messages received",
			},
			[]string{"type"},
		),
		DuplicatesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "broadcast",
				Name:      "duplicates_dropped_total",
				Help:      "Total number of gossip messages from an already seen origin",
			},
		),
		RoundsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "broadcast",
				Name:      "rounds_sent_total",
				Help:      "Total number of dissemination rounds",
			},
			[]string{"trigger"},
		),
		RoundsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "broadcast",
				Name:      "rounds_skipped_total",
				Help:      "Total number of dissemination ticks skipped as unchanged",
			},
		),
		SendErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "broadcast",
				Name:      "send_errors_total",
				Help:      "Total number of gossip messages that failed to send",
			},
		),
		Values: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "glomers",
				Subsystem: "broadcast",
				Name:      "values",
				Help:      "Number of values in the nodes value set",
			},
			[]string{"node_id"},
		),
	}
}

func (m *Metrics) Register(registry *prometheus.Registry) {
	registry.MustRegister(
		m.GossipOutbound,
		m.GossipInbound,
		m.DuplicatesDropped,
		m.RoundsSent,
		m.RoundsSkipped,
		m.SendErrors,
		m.Values,
	)
}
