package runtime

import (
	"chat-live/contract"
	"chat-live/domain"
	"sync"
)

const roomShards = 32

type roomShard struct {
	mu    sync.Mutex
	rooms map[domain.RoomID]connSet
}

// RoomTable holds the live subscription of connections to rooms.
// Rooms are spread over shards so that traffic in one room never waits on another's lock.
type RoomTable struct {
	shards [roomShards]*roomShard
}

func NewRoomTable() *RoomTable {
	t := &RoomTable{}
	for i := range t.shards {
		t.shards[i] = &roomShard{rooms: make(map[domain.RoomID]connSet)}
	}
	return t
}

func (t *RoomTable) shard(roomID domain.RoomID) *roomShard {
	idx := uint64(roomID) % roomShards
	return t.shards[idx]
}

// Join adds conn to the room and reports whether it was not already a member.
func (t *RoomTable) Join(roomID domain.RoomID, conn contract.Conn) bool {
	s := t.shard(roomID)
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.rooms[roomID]
	if !ok {
		members = make(connSet)
		s.rooms[roomID] = members
	}
	if _, exists := members[conn]; exists {
		return false
	}
	members[conn] = struct{}{}
	return true
}

// Leave removes conn from the room and reports whether it was a member.
func (t *RoomTable) Leave(roomID domain.RoomID, conn contract.Conn) bool {
	s := t.shard(roomID)
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	if _, exists := members[conn]; !exists {
		return false
	}
	delete(members, conn)
	if len(members) == 0 {
		delete(s.rooms, roomID)
	}
	return true
}

// Members returns a copy of the room's connections, safe to iterate without the lock.
func (t *RoomTable) Members(roomID domain.RoomID) []contract.Conn {
	s := t.shard(roomID)
	s.mu.Lock()
	defer s.mu.Unlock()

	members := s.rooms[roomID]
	res := make([]contract.Conn, 0, len(members))
	for conn := range members {
		res = append(res, conn)
	}
	return res
}

// Count returns the number of rooms with at least one live member.
func (t *RoomTable) Count() int {
	total := 0
	for _, s := range t.shards {
		s.mu.Lock()
		total += len(s.rooms)
		s.mu.Unlock()
	}
	return total
}
