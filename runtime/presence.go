package runtime

import (
	"chat-live/domain"
	"sync"

	"github.com/samber/lo"
)

// Presence keeps the last known status of every user seen since startup.
// It is the in-memory view; durable status is mirrored elsewhere.
type Presence struct {
	mu      sync.RWMutex
	entries map[domain.UserID]domain.Presence
}

func NewPresence() *Presence {
	return &Presence{entries: make(map[domain.UserID]domain.Presence)}
}

// SetStatus overwrites the status of the user. The status message is only
// overwritten when message is not nil.
func (p *Presence) SetStatus(userID domain.UserID, status domain.Status, message *string) domain.Presence {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry := p.entries[userID]
	entry.UserID = userID
	entry.Status = status
	if message != nil {
		entry.StatusMessage = *message
	}
	p.entries[userID] = entry
	return entry
}

// GetStatus returns the last known entry, offline when the user was never seen.
func (p *Presence) GetStatus(userID domain.UserID) domain.Presence {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.entries[userID]
	if !ok {
		return domain.Presence{UserID: userID, Status: domain.StatusOffline}
	}
	return entry
}

func (p *Presence) Snapshot() []domain.Presence {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.Values(p.entries)
}
