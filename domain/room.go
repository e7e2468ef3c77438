package domain

// RoomID identifies a chat room. Live subscriptions to a room are independent
// of its durable membership list.
type RoomID int64

// UserID identifies an authenticated principal.
type UserID int64

// MessageID is the server-assigned identifier of a persisted message.
type MessageID int64
