package workers

import (
	"chat-live/contract"
	"chat-live/domain"
	"context"
	"log/slog"
	"time"
)

// IndexWorker feeds stored messages to the search index.
type IndexWorker struct {
	log      *slog.Logger
	indexer  contract.MessageIndexer
	messages <-chan domain.Message
	timeout  time.Duration
}

func NewIndexWorker(log *slog.Logger, indexer contract.MessageIndexer, messages <-chan domain.Message, timeout time.Duration) *IndexWorker {
	return &IndexWorker{log: log, indexer: indexer, messages: messages, timeout: timeout}
}

func (w *IndexWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping index worker")
			return ctx.Err()
		case msg, ok := <-w.messages:
			if !ok {
				w.log.Debug("Index channel is closed")
				return nil
			}
			indexCtx, cancel := context.WithTimeout(ctx, w.timeout)
			if err := w.indexer.Index(indexCtx, msg); err != nil {
				w.log.Warn("Unable to index message", "message_id", msg.ID, "room_id", msg.Room, "error", err)
			}
			cancel()
		}
	}
}
