// Package event defines the events pushed from the server to live connections.
// Each event serializes to the JSON envelope clients expect.
package event

import (
	"chat-live/domain"
	"time"
)

type Type string

const (
	TypePresence   Type = "presence"
	TypeSystem     Type = "system"
	TypeRoomUpdate Type = "room_update"
	TypeMessage    Type = "message"
	TypePong       Type = "pong"
)

// DomainEvent is anything that can be fanned out to connections.
type DomainEvent interface {
	EventType() Type
}

// PresenceChanged is broadcast to every connection.
// A nil StatusMessage means the event says nothing about the message.
type PresenceChanged struct {
	Type          Type          `json:"type"`
	UserID        domain.UserID `json:"userId"`
	Status        domain.Status `json:"status"`
	StatusMessage *string       `json:"statusMessage,omitempty"`
}

func NewPresenceChanged(p domain.Presence) PresenceChanged {
	evt := PresenceChanged{
		Type:   TypePresence,
		UserID: p.UserID,
		Status: p.Status,
	}
	if p.StatusMessage != "" {
		message := p.StatusMessage
		evt.StatusMessage = &message
	}
	return evt
}

// NewStatusChanged answers a status update: the message is always sent, so
// that an empty one reads as cleared.
func NewStatusChanged(p domain.Presence) PresenceChanged {
	evt := NewPresenceChanged(p)
	message := p.StatusMessage
	evt.StatusMessage = &message
	return evt
}

func (e PresenceChanged) EventType() Type { return e.Type }

// RoomNotice is broadcast to the subscribers of a room when someone joins or leaves.
type RoomNotice struct {
	Type    Type          `json:"type"`
	RoomID  domain.RoomID `json:"roomId"`
	Message string        `json:"message"`
}

func NewRoomNotice(kind Type, room domain.RoomID, message string) RoomNotice {
	if kind != TypeRoomUpdate {
		kind = TypeSystem
	}
	return RoomNotice{Type: kind, RoomID: room, Message: message}
}

func (e RoomNotice) EventType() Type { return e.Type }

type Sender struct {
	ID   domain.UserID `json:"id"`
	Name string        `json:"name"`
}

// MessagePosted is broadcast to the subscribers of a room.
// MessageID is only set when the message has been persisted.
type MessagePosted struct {
	Type      Type              `json:"type"`
	RoomID    domain.RoomID     `json:"roomId"`
	MessageID *domain.MessageID `json:"messageId,omitempty"`
	Sender    Sender            `json:"sender"`
	Content   string            `json:"content"`
	CreatedAt time.Time         `json:"createdAt"`
}

func NewMessagePosted(m domain.Message, persisted bool) MessagePosted {
	evt := MessagePosted{
		Type:      TypeMessage,
		RoomID:    m.Room,
		Sender:    Sender{ID: m.SenderID, Name: m.SenderName},
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if persisted {
		id := m.ID
		evt.MessageID = &id
	}
	return evt
}

func (e MessagePosted) EventType() Type { return e.Type }

type Pong struct {
	Type Type `json:"type"`
}

func NewPong() Pong { return Pong{Type: TypePong} }

func (e Pong) EventType() Type { return e.Type }
