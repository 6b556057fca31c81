package relay

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	connections  prometheus.Gauge
	rooms        prometheus.Gauge
	relayed      *prometheus.CounterVec
	droppedUni   prometheus.Counter
	rejected     *prometheus.CounterVec
	chatFailures prometheus.Counter
	slowClosed   prometheus.Counter
}

// newMetrics registers the relay collectors on reg. A nil reg keeps them
// unregistered, which tests rely on to build many hubs.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "whiteboard",
			Name:      "connections",
			Help:      "Live websocket connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "whiteboard",
			Name:      "rooms",
			Help:      "Rooms with at least one participant.",
		}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whiteboard",
			Name:      "events_relayed_total",
			Help:      "Inbound events handled, by event and fan-out.",
		}, []string{"event", "fanout"}),
		droppedUni: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whiteboard",
			Name:      "unicast_dropped_total",
			Help:      "Signaling messages whose target was not connected.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whiteboard",
			Name:      "events_rejected_total",
			Help:      "Inbound frames refused before reaching a handler.",
		}, []string{"reason"}),
		chatFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whiteboard",
			Name:      "chat_persist_failures_total",
			Help:      "Chat messages broadcast live but not stored.",
		}),
		slowClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whiteboard",
			Name:      "slow_connections_closed_total",
			Help:      "Connections closed because their send buffer filled.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.connections, m.rooms, m.relayed, m.droppedUni, m.rejected, m.chatFailures, m.slowClosed)
	}
	return m
}

const (
	fanoutRoom   = "room"
	fanoutOthers = "others"
	fanoutDirect = "direct"
	fanoutNone   = "none"
)
