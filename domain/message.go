// Package domain contains core concepts of the chat system.
// This file defines Message records and their author projection.
package domain

import "time"

// Message represents a persisted chat message.
type Message struct {
	ID         MessageID
	Room       RoomID
	SenderID   UserID
	SenderName string
	Content    string
	CreatedAt  time.Time
}
