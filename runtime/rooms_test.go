package runtime

import (
	"chat-live/contract"
	"chat-live/domain"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomTable_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	table := NewRoomTable()
	conn := newFakeConn()
	roomID := domain.RoomID(42)

	// When the same connection joins twice
	first := table.Join(roomID, conn)
	second := table.Join(roomID, conn)

	// Then it is counted once
	req.True(first)
	req.False(second)
	req.Equal([]contract.Conn{conn}, table.Members(roomID))
}

func TestRoomTable_Leave(t *testing.T) {
	req := require.New(t)
	table := NewRoomTable()
	conn1, conn2 := newFakeConn(), newFakeConn()
	roomID := domain.RoomID(42)

	// Leaving a room never joined is a no-op
	req.False(table.Leave(roomID, conn1))

	table.Join(roomID, conn1)
	table.Join(roomID, conn2)

	req.True(table.Leave(roomID, conn1))
	req.False(table.Leave(roomID, conn1))
	req.Equal([]contract.Conn{conn2}, table.Members(roomID))

	// The last leave drops the room
	req.True(table.Leave(roomID, conn2))
	req.Empty(table.Members(roomID))
	req.Zero(table.Count())
}

func TestRoomTable_Rooms_Are_Independent(t *testing.T) {
	req := require.New(t)
	table := NewRoomTable()
	conn := newFakeConn()

	// Rooms 1 and 33 share a shard
	table.Join(1, conn)
	table.Join(33, conn)
	table.Join(2, conn)

	table.Leave(1, conn)

	req.Empty(table.Members(1))
	req.Len(table.Members(33), 1)
	req.Len(table.Members(2), 1)
	req.Equal(2, table.Count())
}

func TestRoomTable_Members_Is_A_Snapshot(t *testing.T) {
	req := require.New(t)
	table := NewRoomTable()
	conn1, conn2 := newFakeConn(), newFakeConn()

	table.Join(5, conn1)
	snapshot := table.Members(5)

	// When membership changes after the snapshot
	table.Join(5, conn2)
	table.Leave(5, conn1)

	// Then the snapshot is unchanged
	req.Equal([]contract.Conn{conn1}, snapshot)
}

func TestRoomTable_Concurrent_Join_Leave(t *testing.T) {
	req := require.New(t)
	table := NewRoomTable()

	conns := make([]*fakeConn, 100)
	for i := range conns {
		conns[i] = newFakeConn()
	}

	var wg sync.WaitGroup
	for i, c := range conns {
		wg.Add(1)
		go func(room domain.RoomID, c *fakeConn) {
			defer wg.Done()
			table.Join(room, c)
			table.Join(room+100, c)
			table.Leave(room+100, c)
		}(domain.RoomID(i%10+1), c)
	}
	wg.Wait()

	total := 0
	for room := domain.RoomID(1); room <= 10; room++ {
		total += len(table.Members(room))
		req.Empty(table.Members(room + 100))
	}
	req.Equal(100, total)
}
