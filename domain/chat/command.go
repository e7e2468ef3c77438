// Package chat defines the inbound commands a live connection can send and
// decodes them from their JSON envelope.
package chat

import (
	"chat-live/domain"
)

type EventType string

const (
	TypeStatusUpdate EventType = "status_update"
	TypeJoinRoom     EventType = "join_room"
	TypeLeaveRoom    EventType = "leave_room"
	TypeMessage      EventType = "message"
	TypePing         EventType = "ping"
)

type Command interface {
	Type() EventType
}

type StatusUpdateCommand struct {
	Status        domain.Status `validate:"required"`
	StatusMessage *string
}

func (StatusUpdateCommand) Type() EventType { return TypeStatusUpdate }

type JoinRoomCommand struct {
	Room domain.RoomID `validate:"gt=0"`
}

func (JoinRoomCommand) Type() EventType { return TypeJoinRoom }

type LeaveRoomCommand struct {
	Room domain.RoomID `validate:"gt=0"`
}

func (LeaveRoomCommand) Type() EventType { return TypeLeaveRoom }

type PostMessageCommand struct {
	Room    domain.RoomID `validate:"gt=0"`
	Content string        `validate:"required"`
}

func (PostMessageCommand) Type() EventType { return TypeMessage }

type PingCommand struct{}

func (PingCommand) Type() EventType { return TypePing }
