package services

import (
	"chat-live/domain"
	"chat-live/infrastructure/storage"
	"chat-live/observability"
	"chat-live/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Searcher finds messages of a room by content.
type Searcher interface {
	Search(ctx context.Context, room domain.RoomID, text string, offset int) ([]storage.SearchHit, uint64, error)
}

type IChatService interface {
	PersistMessage(ctx context.Context, msg domain.Message) (domain.Message, error)
	SetUserStatus(ctx context.Context, userID domain.UserID, status domain.Status, message *string) error
	GetMessages(ctx context.Context, room domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	Search(ctx context.Context, room domain.RoomID, text string, offset int) ([]storage.SearchHit, uint64, error)
}

// ChatService is the durable side of the chat: it stores messages and mirrors
// statuses. Live delivery never waits on the index.
type ChatService struct {
	log               *slog.Logger
	metrics           *observability.Metrics
	messageRepository storage.IMessageRepository
	userRepository    storage.IUserRepository
	searcher          Searcher
	indexQueue        chan<- domain.Message
}

func NewChatService(
	log *slog.Logger,
	metrics *observability.Metrics,
	messageRepository storage.IMessageRepository,
	userRepository storage.IUserRepository,
	searcher Searcher,
	indexQueue chan<- domain.Message,
) *ChatService {
	return &ChatService{
		log:               log,
		metrics:           metrics,
		messageRepository: messageRepository,
		userRepository:    userRepository,
		searcher:          searcher,
		indexQueue:        indexQueue,
	}
}

// PersistMessage stores the message and hands it to the index worker.
func (s *ChatService) PersistMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	stored, err := s.messageRepository.StoreMessage(ctx, msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("store message of room %d: %w", msg.Room, err)
	}
	if s.indexQueue != nil && !workers.Offer(s.indexQueue, stored) {
		s.metrics.SideEffectsDropped.WithLabelValues("indexer").Inc()
		s.log.Warn("Index queue full, message not indexed", "message_id", stored.ID, "room_id", stored.Room)
	}
	return stored, nil
}

func (s *ChatService) SetUserStatus(ctx context.Context, userID domain.UserID, status domain.Status, message *string) error {
	return s.userRepository.UpdateStatus(ctx, userID, status, message)
}

func (s *ChatService) GetMessages(ctx context.Context, room domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	return s.messageRepository.GetMessages(ctx, room, cursor)
}

func (s *ChatService) Search(ctx context.Context, room domain.RoomID, text string, offset int) ([]storage.SearchHit, uint64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, 0, nil
	}
	return s.searcher.Search(ctx, room, text, offset)
}
