package runtime

import (
	"chat-live/contract"
	"chat-live/domain"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Register_First_Connection_Goes_Online(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := domain.UserID(1)
	conn1, conn2 := newFakeConn(), newFakeConn()

	// Given no connection for the user
	req.False(registry.IsOnline(userID))

	// When the user opens two connections
	first := registry.Register(userID, conn1)
	second := registry.Register(userID, conn2)

	// Then only the first one reports a transition to online
	req.True(first)
	req.False(second)
	req.True(registry.IsOnline(userID))
	req.ElementsMatch([]contract.Conn{conn1, conn2}, registry.Connections())
	req.Equal(2, registry.Count())
}

func TestRegistry_Register_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := newFakeConn()

	req.True(registry.Register(1, conn))
	req.False(registry.Register(1, conn))

	req.Len(registry.Connections(), 1)
}

func TestRegistry_Unregister_Last_Connection_Goes_Offline(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := domain.UserID(7)
	conn1, conn2 := newFakeConn(), newFakeConn()

	// Given a user with two connections
	registry.Register(userID, conn1)
	registry.Register(userID, conn2)

	// When the first one is removed
	// Then the user is still online
	req.False(registry.Unregister(userID, conn1))
	req.True(registry.IsOnline(userID))

	// When the last one is removed
	// Then the user goes offline
	req.True(registry.Unregister(userID, conn2))
	req.False(registry.IsOnline(userID))
	req.Empty(registry.OnlineUsers())
	req.Empty(registry.Connections())
}

func TestRegistry_Unregister_Unknown_Is_NoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := newFakeConn()

	// Unknown user
	req.False(registry.Unregister(3, conn))

	// Known user, unknown connection
	registry.Register(3, conn)
	req.False(registry.Unregister(3, newFakeConn()))
	req.True(registry.IsOnline(3))

	// Duplicate removal
	req.True(registry.Unregister(3, conn))
	req.False(registry.Unregister(3, conn))
}

func TestRegistry_Concurrent_Unregister_Reports_Offline_Once(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := domain.UserID(9)

	conns := make([]*fakeConn, 50)
	for i := range conns {
		conns[i] = newFakeConn()
		registry.Register(userID, conns[i])
	}

	// When every connection disconnects at the same time
	var offline atomic.Int32
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			if registry.Unregister(userID, c) {
				offline.Add(1)
			}
		}(c)
	}
	wg.Wait()

	// Then exactly one caller observed the transition
	req.Equal(int32(1), offline.Load())
	req.False(registry.IsOnline(userID))
}

func TestRegistry_OnlineUsers(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register(1, newFakeConn())
	registry.Register(2, newFakeConn())
	registry.Register(2, newFakeConn())

	req.ElementsMatch([]domain.UserID{1, 2}, registry.OnlineUsers())
	req.Equal(3, registry.Count())
}
