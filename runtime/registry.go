package runtime

import (
	"chat-live/contract"
	"chat-live/domain"
	"sync"

	"github.com/samber/lo"
)

type connSet map[contract.Conn]struct{}

// Registry tracks every live connection of every user.
// A user is online while at least one of its connections is registered.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.UserID]connSet
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.UserID]connSet)}
}

// Register adds conn to the user's set.
// It reports true when this is the first connection of the user.
func (r *Registry) Register(userID domain.UserID, conn contract.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(connSet)
		r.conns[userID] = set
	}
	wentOnline := len(set) == 0
	set[conn] = struct{}{}
	return wentOnline
}

// Unregister removes conn from the user's set.
// It reports true only when this call removed the last connection of the user,
// so concurrent disconnects of the same user observe true exactly once.
func (r *Registry) Unregister(userID domain.UserID, conn contract.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return false
	}
	if _, present := set[conn]; !present {
		return false
	}
	delete(set, conn)

	// No empty sets left behind
	if len(set) == 0 {
		delete(r.conns, userID)
		return true
	}
	return false
}

func (r *Registry) IsOnline(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// Connections returns a copy of every registered connection.
func (r *Registry) Connections() []contract.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]contract.Conn, 0, len(r.conns))
	for _, set := range r.conns {
		for conn := range set {
			res = append(res, conn)
		}
	}
	return res
}

func (r *Registry) OnlineUsers() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.conns)
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.SumBy(lo.Values(r.conns), func(set connSet) int { return len(set) })
}
