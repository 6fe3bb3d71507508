package node

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// MessagesInbound is the total number of routed messages, labelled by
	// message type. Types without a handler are labelled "unknown".
	MessagesInbound *prometheus.CounterVec

	// HandlerErrors is the total number of messages that failed, labelled by
	// error kind.
	HandlerErrors *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		MessagesInbound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "router",
				Name:      "messages_inbound_total",
				Help:      "Total number of messages routed",
			},
			[]string{"type"},
		),
		HandlerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "router",
				Name:      "handler_errors_total",
				Help:      "Total number of messages that failed",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) Register(registry *prometheus.Registry) {
	registry.MustRegister(
		m.MessagesInbound,
		m.HandlerErrors,
	)
}
