//go:generate go run go.uber.org/mock/mockgen -source=message_repository.go -destination=../../mocks/mock_message_repository.go -package=mocks
package storage

import (
	"chat-live/domain"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	messagePrefix      = "msg:"
	messageSequenceKey = "seq:msg"
)

type IMessageRepository interface {
	StoreMessage(ctx context.Context, message domain.Message) (domain.Message, error)
	GetMessages(ctx context.Context, room domain.RoomID, cursor *string) ([]domain.Message, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	seq           *badger.Sequence
	limitMessages int
}

// NewMessageRepository leases message ids from a badger sequence. Release must
// be called before the database is closed.
func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(messageSequenceKey), 100)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, log: log, seq: seq, limitMessages: limitMessages}, nil
}

func (m *MessageRepository) Release() error {
	return m.seq.Release()
}

func roomPrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("%s%d:", messagePrefix, room))
}

// messageKey is "msg:{room}:{created_at_padded}:{id_padded}".
// The 19 digit padding keeps the lexicographical order chronological and the id
// separates two messages stored at the same nanosecond.
func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%d:%019d:%019d", messagePrefix, m.Room, m.CreatedAt.UnixNano(), m.ID))
}

// StoreMessage assigns an id, and a timestamp when missing, then persists the message.
func (m *MessageRepository) StoreMessage(_ context.Context, message domain.Message) (domain.Message, error) {
	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("next message id: %w", err)
	}
	message.ID = domain.MessageID(next + 1)
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	message.CreatedAt = message.CreatedAt.UTC()

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), encodeMessage(message))
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// GetMessages returns a page of the room, newest first.
// The returned cursor is the position of the last message of the page; passing
// it back continues with older messages. A nil cursor means there is nothing left.
func (m *MessageRepository) GetMessages(_ context.Context, room domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	hasMore := false

	err := m.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(room)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// In reverse mode Seek lands on the greatest key <= seekKey
		seekKey := append([]byte{}, prefix...)
		if cursor == nil {
			seekKey = append(seekKey, 0xFF)
		} else {
			seekKey = append(seekKey, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()[len(prefix):]) == *cursor {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages > 0 && len(messages) == m.limitMessages {
				hasMore = true
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				msg, err := decodeMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if !hasMore {
		return messages, nil, nil
	}
	m.log.Debug("Page limit reached", "room_id", room, "limit", m.limitMessages)
	return messages, &lastKey, nil
}

// CountMessages returns the number of messages stored per room.
func CountMessages(db *badger.DB) (map[domain.RoomID]int, error) {
	counts := make(map[domain.RoomID]int)
	err := db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(messagePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var room domain.RoomID
			if _, err := fmt.Sscanf(string(it.Item().Key()[len(prefix):]), "%d:", &room); err != nil {
				continue
			}
			counts[room]++
		}
		return nil
	})
	return counts, err
}
