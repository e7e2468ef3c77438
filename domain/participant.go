// Package domain contains core concepts of the chat system.
// This file defines User entities and their presence.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Status is a free-form presence status. The well-known values are listed
// below but any client-chosen string is accepted and relayed unchanged.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

func (s Status) String() string { return string(s) }

// User is the durable account of a participant.
type User struct {
	ID            UserID
	Name          string
	Email         string
	PasswordHash  string
	Roles         []string
	Status        Status
	StatusMessage string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Identity is what an authenticated connection knows about its user.
type Identity struct {
	ID   UserID
	Name string
}

// Presence is the last known status of a user as seen by other clients.
type Presence struct {
	UserID        UserID
	Status        Status
	StatusMessage string
}
