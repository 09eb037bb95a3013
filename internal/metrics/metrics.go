// Package metrics wraps the Connection Core's qlog-style observer points
// (transport.Conn.OnLogEvent) with Prometheus collectors, so an embedder
// gets the usual packets/streams/retransmissions counters without the core
// itself importing Prometheus (spec.md 1: metrics are an embedder concern,
// not something the Connection Core produces on its own).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eeverettrbx/qcore/transport"
)

// Collectors bundles every counter/gauge a qcore embedder exposes.
type Collectors struct {
	PacketsSent      *prometheus.CounterVec
	PacketsReceived  *prometheus.CounterVec
	PacketsDropped   prometheus.Counter
	FramesProcessed  *prometheus.CounterVec
	StreamsOpened    prometheus.Counter
	StreamsClosed    prometheus.Counter
	Retransmissions  prometheus.Counter
	ConnectionsTotal *prometheus.CounterVec
}

// NewCollectors builds a Collectors with the given namespace, ready for
// prometheus.Registerer.MustRegister.
func NewCollectors(namespace string) *Collectors {
	return &Collectors{
		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "QUIC packets sent, by packet type.",
		}, []string{"type"}),
		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "QUIC packets received, by packet type.",
		}, []string{"type"}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Short-header packets dropped because the pre-handshake buffer was full.",
		}),
		FramesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Frames sent or received, by frame type.",
		}, []string{"event"}),
		StreamsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_opened_total",
			Help:      "Streams seen receiving their first byte written or read.",
		}),
		StreamsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_closed_total",
			Help:      "Streams torn down (SHUT_RDWR reached).",
		}),
		Retransmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retransmissions_total",
			Help:      "Send rounds driven by an expired timer (RTB or delayed ACK).",
		}),
		ConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connections created, by role.",
		}, []string{"role"}),
	}
}

// MustRegister registers every collector against r.
func (c *Collectors) MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		c.PacketsSent,
		c.PacketsReceived,
		c.PacketsDropped,
		c.FramesProcessed,
		c.StreamsOpened,
		c.StreamsClosed,
		c.Retransmissions,
		c.ConnectionsTotal,
	)
}

// Observe is the transport.Conn.OnLogEvent handler: it folds one qlog
// event into the relevant counters.
func (c *Collectors) Observe(e transport.LogEvent) {
	switch e.Type {
	case "packet_sent":
		c.PacketsSent.WithLabelValues(fieldStr(e, "packet_type")).Inc()
	case "packet_received":
		c.PacketsReceived.WithLabelValues(fieldStr(e, "packet_type")).Inc()
	case "packet_dropped":
		c.PacketsDropped.Inc()
	case "frames_processed":
		c.FramesProcessed.WithLabelValues(fieldStr(e, "frame_type")).Inc()
	}
}

func fieldStr(e transport.LogEvent, key string) string {
	for _, f := range e.Fields {
		if f.Key == key {
			if f.Str != "" {
				return f.Str
			}
			return "unknown"
		}
	}
	return "unknown"
}
