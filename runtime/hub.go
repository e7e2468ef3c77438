// Package runtime owns the live state of the chat: who is connected, which
// connection listens to which room, and the presence of every user.
// It orchestrates fan-out without containing storage or transport logic.
package runtime

import (
	"chat-live/contract"
	"chat-live/domain"
	"chat-live/domain/event"
	"chat-live/moderation"
	"chat-live/observability"
	"chat-live/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const userLockStripes = 64

type HubConfig struct {
	// NoticeType is the event type of join and leave notices, system or room_update.
	NoticeType     event.Type
	PersistTimeout time.Duration
}

// Hub is the single owner of the live chat state.
// Sessions only talk to the Hub, never to its parts.
type Hub struct {
	log         *slog.Logger
	metrics     *observability.Metrics
	registry    *Registry
	rooms       *RoomTable
	presence    *Presence
	broadcaster *Broadcaster

	// Optional collaborators
	persister     contract.MessagePersister
	moderator     *moderation.Moderator
	statusChanges chan<- workers.StatusChange

	noticeType     event.Type
	persistTimeout time.Duration

	// Presence transitions of one user are applied and broadcast in order
	userLocks [userLockStripes]sync.Mutex
}

type HubOption func(*Hub)

// WithPersistence stores every chat message before it is broadcast.
func WithPersistence(persister contract.MessagePersister) HubOption {
	return func(h *Hub) { h.persister = persister }
}

func WithModeration(moderator *moderation.Moderator) HubOption {
	return func(h *Hub) { h.moderator = moderator }
}

// WithStatusMirror sends every presence transition to a background mirror.
func WithStatusMirror(changes chan<- workers.StatusChange) HubOption {
	return func(h *Hub) { h.statusChanges = changes }
}

func NewHub(log *slog.Logger, metrics *observability.Metrics, cfg HubConfig, opts ...HubOption) *Hub {
	registry := NewRegistry()
	rooms := NewRoomTable()
	h := &Hub{
		log:            log,
		metrics:        metrics,
		registry:       registry,
		rooms:          rooms,
		presence:       NewPresence(),
		broadcaster:    NewBroadcaster(log, metrics, registry, rooms),
		noticeType:     cfg.NoticeType,
		persistTimeout: cfg.PersistTimeout,
	}
	if h.noticeType == "" {
		h.noticeType = event.TypeSystem
	}
	if h.persistTimeout <= 0 {
		h.persistTimeout = 5 * time.Second
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) lockUser(userID domain.UserID) func() {
	m := &h.userLocks[uint64(userID)%userLockStripes]
	m.Lock()
	return m.Unlock
}

// Connect registers a new connection. The first connection of a user makes
// the user online and is announced to everyone.
func (h *Hub) Connect(ctx context.Context, user domain.Identity, conn contract.Conn) {
	unlock := h.lockUser(user.ID)
	defer unlock()

	h.metrics.ConnectionsTotal.Inc()
	wentOnline := h.registry.Register(user.ID, conn)
	h.metrics.ActiveConnections.Set(float64(h.registry.Count()))
	if !wentOnline {
		h.log.Debug("Additional connection", "user_id", user.ID, "conn_id", conn.ID())
		return
	}

	h.metrics.OnlineUsers.Inc()
	h.presence.SetStatus(user.ID, domain.StatusOnline, nil)
	h.mirror(workers.StatusChange{UserID: user.ID, Status: domain.StatusOnline})
	h.broadcaster.BroadcastAll(ctx, event.NewPresenceChanged(domain.Presence{UserID: user.ID, Status: domain.StatusOnline}))
	h.log.Info("User online", "user_id", user.ID, "conn_id", conn.ID())
}

// Disconnect silently releases every room of the connection, then unregisters it.
// Removing the last connection of a user makes the user offline, announced exactly once.
func (h *Hub) Disconnect(ctx context.Context, user domain.Identity, conn contract.Conn, rooms []domain.RoomID) {
	for _, roomID := range rooms {
		h.rooms.Leave(roomID, conn)
	}

	unlock := h.lockUser(user.ID)
	defer unlock()

	wentOffline := h.registry.Unregister(user.ID, conn)
	h.metrics.ActiveConnections.Set(float64(h.registry.Count()))
	if !wentOffline {
		return
	}

	h.metrics.OnlineUsers.Dec()
	h.presence.SetStatus(user.ID, domain.StatusOffline, nil)
	h.mirror(workers.StatusChange{UserID: user.ID, Status: domain.StatusOffline})
	h.broadcaster.BroadcastAll(ctx, event.NewPresenceChanged(domain.Presence{UserID: user.ID, Status: domain.StatusOffline}))
	h.log.Info("User offline", "user_id", user.ID, "conn_id", conn.ID())
}

// UpdateStatus records a status chosen by the user and announces it to everyone.
func (h *Hub) UpdateStatus(ctx context.Context, user domain.Identity, status domain.Status, message *string) domain.Presence {
	unlock := h.lockUser(user.ID)
	defer unlock()

	p := h.presence.SetStatus(user.ID, status, message)
	h.mirror(workers.StatusChange{UserID: user.ID, Status: status, Message: message})

	h.broadcaster.BroadcastAll(ctx, event.NewStatusChanged(p))
	return p
}

// JoinRoom subscribes conn to the room. Only an actual change is announced to the room.
func (h *Hub) JoinRoom(ctx context.Context, user domain.Identity, conn contract.Conn, roomID domain.RoomID) bool {
	if !h.rooms.Join(roomID, conn) {
		return false
	}
	h.broadcaster.BroadcastRoom(ctx, roomID, event.NewRoomNotice(h.noticeType, roomID, fmt.Sprintf("%s joined the room.", user.Name)))
	return true
}

// LeaveRoom unsubscribes conn from the room. The remaining members are notified.
func (h *Hub) LeaveRoom(ctx context.Context, user domain.Identity, conn contract.Conn, roomID domain.RoomID) bool {
	if !h.rooms.Leave(roomID, conn) {
		return false
	}
	h.broadcaster.BroadcastRoom(ctx, roomID, event.NewRoomNotice(h.noticeType, roomID, fmt.Sprintf("%s left the room.", user.Name)))
	return true
}

// PostMessage moderates, stores and broadcasts a chat message to the room.
// A storage failure never prevents the broadcast; the event then carries no id.
func (h *Hub) PostMessage(ctx context.Context, user domain.Identity, roomID domain.RoomID, content string) event.MessagePosted {
	if h.moderator != nil {
		review := h.moderator.Review(content)
		if review.Censored() {
			h.log.Info("Message moderated", "user_id", user.ID, "room_id", roomID, "lang", review.Language, "words", len(review.Words))
		}
		content = review.Content
	}

	msg := domain.Message{
		Room:       roomID,
		SenderID:   user.ID,
		SenderName: user.Name,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}

	persisted := false
	if h.persister != nil {
		persistCtx, cancel := context.WithTimeout(ctx, h.persistTimeout)
		stored, err := h.persister.PersistMessage(persistCtx, msg)
		cancel()
		if err != nil {
			h.metrics.PersistFailures.Inc()
			h.log.Warn("Message not persisted, broadcasting anyway", "user_id", user.ID, "room_id", roomID, "error", err)
		} else {
			h.metrics.MessagesPersisted.Inc()
			msg = stored
			persisted = true
		}
	}

	evt := event.NewMessagePosted(msg, persisted)
	h.broadcaster.BroadcastRoom(ctx, roomID, evt)
	return evt
}

// Pong answers a ping on the connection that sent it.
func (h *Hub) Pong(ctx context.Context, conn contract.Conn) error {
	return h.broadcaster.Unicast(ctx, conn, event.NewPong())
}

// OnlinePresence returns the presence of every user currently online.
func (h *Hub) OnlinePresence() []domain.Presence {
	users := h.registry.OnlineUsers()
	res := make([]domain.Presence, 0, len(users))
	for _, userID := range users {
		res = append(res, h.presence.GetStatus(userID))
	}
	return res
}

func (h *Hub) IsOnline(userID domain.UserID) bool {
	return h.registry.IsOnline(userID)
}

// Stats is a point in time view of the live state.
type Stats struct {
	Connections int `json:"connections"`
	OnlineUsers int `json:"online_users"`
	ActiveRooms int `json:"active_rooms"`
}

func (h *Hub) Stats() Stats {
	return Stats{
		Connections: h.registry.Count(),
		OnlineUsers: len(h.registry.OnlineUsers()),
		ActiveRooms: h.rooms.Count(),
	}
}

func (h *Hub) mirror(change workers.StatusChange) {
	if h.statusChanges == nil {
		return
	}
	if !workers.Offer(h.statusChanges, change) {
		h.metrics.SideEffectsDropped.WithLabelValues("status_mirror").Inc()
		h.log.Warn("Status mirror queue full, change dropped", "user_id", change.UserID, "status", change.Status)
	}
}
