package storage

import (
	"chat-live/domain"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/blugelabs/bluge"
)

const (
	fieldRoom       = "room"
	fieldSenderID   = "sender_id"
	fieldSenderName = "sender_name"
	fieldContent    = "content"
	fieldCreatedAt  = "created_at"
)

// SearchHit is one message matching a full-text query.
type SearchHit struct {
	MessageID  domain.MessageID `json:"messageId"`
	Room       domain.RoomID    `json:"roomId"`
	SenderID   domain.UserID    `json:"senderId"`
	SenderName string           `json:"senderName"`
	Content    string           `json:"content"`
	CreatedAt  time.Time        `json:"createdAt"`
	Score      float64          `json:"score"`
}

// SearchIndex keeps a bluge index of the persisted messages, scoped by room.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
	limit  int
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger, limit int) *SearchIndex {
	if limit <= 0 {
		limit = 20
	}
	return &SearchIndex{writer: writer, log: log, limit: limit}
}

// Index adds or replaces the document of a message.
func (s *SearchIndex) Index(_ context.Context, msg domain.Message) error {
	doc := bluge.NewDocument(strconv.FormatInt(int64(msg.ID), 10)).
		AddField(bluge.NewKeywordField(fieldRoom, strconv.FormatInt(int64(msg.Room), 10)).StoreValue()).
		AddField(bluge.NewKeywordField(fieldSenderID, strconv.FormatInt(int64(msg.SenderID), 10)).StoreValue()).
		AddField(bluge.NewKeywordField(fieldSenderName, msg.SenderName).StoreValue()).
		AddField(bluge.NewTextField(fieldContent, msg.Content).StoreValue().HighlightMatches()).
		AddField(bluge.NewDateTimeField(fieldCreatedAt, msg.CreatedAt).StoreValue())

	if err := s.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index message %d: %w", msg.ID, err)
	}
	return nil
}

// Search returns the best matches of the query in a room and the total number of hits.
func (s *SearchIndex) Search(ctx context.Context, room domain.RoomID, text string, offset int) ([]SearchHit, uint64, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, 0, fmt.Errorf("open index reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Warn("Unable to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(text).SetField(fieldContent)).
		AddMust(bluge.NewTermQuery(strconv.FormatInt(int64(room), 10)).SetField(fieldRoom))

	request := bluge.NewTopNSearch(s.limit, query).
		SetFrom(offset).
		WithStandardAggregations()

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, fmt.Errorf("search room %d: %w", room, err)
	}

	var hits []SearchHit
	match, err := iterator.Next()
	for err == nil && match != nil {
		hit := SearchHit{Score: match.Score}
		var visitErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			visitErr = hit.set(field, value)
			return visitErr == nil
		})
		if err != nil {
			return nil, 0, err
		}
		if visitErr != nil {
			return nil, 0, visitErr
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, 0, err
	}
	return hits, iterator.Aggregations().Count(), nil
}

func (h *SearchHit) set(field string, value []byte) error {
	switch field {
	case "_id":
		id, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil {
			return err
		}
		h.MessageID = domain.MessageID(id)
	case fieldRoom:
		id, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil {
			return err
		}
		h.Room = domain.RoomID(id)
	case fieldSenderID:
		id, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil {
			return err
		}
		h.SenderID = domain.UserID(id)
	case fieldSenderName:
		h.SenderName = string(value)
	case fieldContent:
		h.Content = string(value)
	case fieldCreatedAt:
		at, err := bluge.DecodeDateTime(value)
		if err != nil {
			return err
		}
		h.CreatedAt = at
	}
	return nil
}
