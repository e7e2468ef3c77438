// Package projection builds local timelines from observed events.
// Handles ordering, deduplication, and projections.
// Does not emit events or interact with UI directly.
package projection

import (
	"chat-live/domain"
	"chat-live/domain/event"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Decode turns a frame received from the server back into its event.
func Decode(frame []byte) (event.DomainEvent, error) {
	var head struct {
		Type event.Type `json:"type"`
	}
	if err := json.Unmarshal(frame, &head); err != nil {
		return nil, err
	}

	var evt event.DomainEvent
	var err error
	switch head.Type {
	case event.TypePresence:
		var e event.PresenceChanged
		err = json.Unmarshal(frame, &e)
		evt = e
	case event.TypeSystem, event.TypeRoomUpdate:
		var e event.RoomNotice
		err = json.Unmarshal(frame, &e)
		evt = e
	case event.TypeMessage:
		var e event.MessagePosted
		err = json.Unmarshal(frame, &e)
		evt = e
	case event.TypePong:
		evt = event.NewPong()
	default:
		return nil, fmt.Errorf("unknown event type %q", head.Type)
	}
	if err != nil {
		return nil, err
	}
	return evt, nil
}

// Timeline holds what one client has seen: messages per room, the last
// presence of every user and room notices.
type Timeline struct {
	mu       sync.RWMutex
	messages map[domain.RoomID][]domain.Message
	seen     map[domain.MessageID]struct{}
	presence map[domain.UserID]domain.Presence
	notices  map[domain.RoomID][]string
	pongs    int
}

func NewTimeline() *Timeline {
	return &Timeline{
		messages: make(map[domain.RoomID][]domain.Message),
		seen:     make(map[domain.MessageID]struct{}),
		presence: make(map[domain.UserID]domain.Presence),
		notices:  make(map[domain.RoomID][]string),
	}
}

func (t *Timeline) Consume(e event.DomainEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch evt := e.(type) {
	case event.MessagePosted:
		msg := fromEvent(evt)
		if evt.MessageID != nil {
			// Redelivered persisted messages are kept once
			if _, ok := t.seen[msg.ID]; ok {
				return
			}
			t.seen[msg.ID] = struct{}{}
		}
		t.messages[msg.Room] = append(t.messages[msg.Room], msg)
	case event.PresenceChanged:
		p := domain.Presence{UserID: evt.UserID, Status: evt.Status, StatusMessage: t.presence[evt.UserID].StatusMessage}
		if evt.StatusMessage != nil {
			p.StatusMessage = *evt.StatusMessage
		}
		t.presence[evt.UserID] = p
	case event.RoomNotice:
		t.notices[evt.RoomID] = append(t.notices[evt.RoomID], evt.Message)
	case event.Pong:
		t.pongs++
	}
}

// ConsumeFrame decodes then consumes a raw frame.
func (t *Timeline) ConsumeFrame(frame []byte) (event.DomainEvent, error) {
	evt, err := Decode(frame)
	if err != nil {
		return nil, err
	}
	t.Consume(evt)
	return evt, nil
}

// Messages returns the messages of a room ordered by creation time.
func (t *Timeline) Messages(room domain.RoomID) []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	res := append([]domain.Message(nil), t.messages[room]...)
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res
}

func (t *Timeline) Presence(userID domain.UserID) (domain.Presence, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.presence[userID]
	return p, ok
}

func (t *Timeline) Notices(room domain.RoomID) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.notices[room]...)
}

func (t *Timeline) Pongs() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pongs
}

func fromEvent(evt event.MessagePosted) domain.Message {
	msg := domain.Message{
		Room:       evt.RoomID,
		SenderID:   evt.Sender.ID,
		SenderName: evt.Sender.Name,
		Content:    evt.Content,
		CreatedAt:  evt.CreatedAt,
	}
	if evt.MessageID != nil {
		msg.ID = *evt.MessageID
	}
	return msg
}
