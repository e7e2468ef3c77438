package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chat_live"

// Failure reasons used as label values
const (
	ReasonQueueFull   = "queue_full"
	ReasonClosed      = "closed"
	ReasonEncoding    = "encoding"
	ReasonMalformed   = "malformed"
	ReasonUnknown     = "unknown_type"
	ReasonRateLimited = "rate_limited"
)

// Metrics holds the Prometheus collectors of the live chat runtime.
type Metrics struct {
	ActiveConnections  prometheus.Gauge
	ConnectionsTotal   prometheus.Counter
	OnlineUsers        prometheus.Gauge
	EventsDelivered    *prometheus.CounterVec
	DeliveryFailures   *prometheus.CounterVec
	FramesReceived     *prometheus.CounterVec
	FramesDropped      *prometheus.CounterVec
	MessagesPersisted  prometheus.Counter
	PersistFailures    prometheus.Counter
	SideEffectsDropped *prometheus.CounterVec
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of live WebSocket connections",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted WebSocket connections",
		}),
		OnlineUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Number of users with at least one live connection",
		}),
		EventsDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Events enqueued on a connection, by event type",
		}, []string{"type"}),
		DeliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Events that could not be enqueued on a connection, by reason",
		}, []string{"reason"}),
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames accepted, by event type",
		}, []string{"type"}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Inbound frames discarded, by reason",
		}, []string{"reason"}),
		MessagesPersisted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_persisted_total",
			Help:      "Chat messages written to storage",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Chat messages broadcast without being stored",
		}),
		SideEffectsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effects_dropped_total",
			Help:      "Background side effects dropped because their queue was full",
		}, []string{"worker"}),
	}
}
