package runtime

import (
	"chat-live/contract"
	"chat-live/domain"
	"chat-live/domain/event"
	"chat-live/errors"
	"chat-live/observability"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
)

// Broadcaster fans events out to connections.
//
// It provides best-effort delivery with no guarantees regarding durability
// or retries. Each event is serialized once, then enqueued on every target
// connection. A connection that cannot take the event is skipped and left
// registered: its own session notices the failure and tears it down.
type Broadcaster struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	registry *Registry
	rooms    *RoomTable
}

func NewBroadcaster(log *slog.Logger, metrics *observability.Metrics, registry *Registry, rooms *RoomTable) *Broadcaster {
	return &Broadcaster{log: log, metrics: metrics, registry: registry, rooms: rooms}
}

// Broadcast delivers evt to every connection of the snapshot and returns how many accepted it.
func (b *Broadcaster) Broadcast(ctx context.Context, conns []contract.Conn, evt event.DomainEvent) int {
	if len(conns) == 0 {
		return 0
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		b.log.Error("Unable to encode event", "type", evt.EventType(), "error", err)
		b.metrics.DeliveryFailures.WithLabelValues(observability.ReasonEncoding).Inc()
		return 0
	}

	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(ctx, payload); err != nil {
			b.recordFailure(conn, evt, err)
			continue
		}
		delivered++
	}
	b.metrics.EventsDelivered.WithLabelValues(string(evt.EventType())).Add(float64(delivered))
	return delivered
}

// BroadcastAll targets every registered connection of every user.
func (b *Broadcaster) BroadcastAll(ctx context.Context, evt event.DomainEvent) int {
	return b.Broadcast(ctx, b.registry.Connections(), evt)
}

// BroadcastRoom targets the connections currently joined to the room.
func (b *Broadcaster) BroadcastRoom(ctx context.Context, roomID domain.RoomID, evt event.DomainEvent) int {
	return b.Broadcast(ctx, b.rooms.Members(roomID), evt)
}

// Unicast targets a single connection and reports the failure to the caller.
func (b *Broadcaster) Unicast(ctx context.Context, conn contract.Conn, evt event.DomainEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		b.metrics.DeliveryFailures.WithLabelValues(observability.ReasonEncoding).Inc()
		return err
	}
	if err := conn.Send(ctx, payload); err != nil {
		b.recordFailure(conn, evt, err)
		return err
	}
	b.metrics.EventsDelivered.WithLabelValues(string(evt.EventType())).Inc()
	return nil
}

func (b *Broadcaster) recordFailure(conn contract.Conn, evt event.DomainEvent, err error) {
	reason := observability.ReasonClosed
	if stderrors.Is(err, errors.ErrSinkFull) {
		reason = observability.ReasonQueueFull
	}
	b.metrics.DeliveryFailures.WithLabelValues(reason).Inc()
	b.log.Debug("Event not delivered", "conn_id", conn.ID(), "type", evt.EventType(), "error", err)
}
