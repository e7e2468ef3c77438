package workers

import (
	"chat-live/contract"
	"chat-live/domain"
	"context"
	"log/slog"
	"time"
)

// StatusChange is a presence transition waiting to be copied to storage.
// A nil Message leaves the stored status message untouched.
type StatusChange struct {
	UserID  domain.UserID
	Status  domain.Status
	Message *string
}

// StatusMirrorWorker copies presence changes into durable storage.
// Failures are logged and swallowed: the in-memory presence stays authoritative.
type StatusMirrorWorker struct {
	log     *slog.Logger
	mirror  contract.StatusMirror
	changes <-chan StatusChange
	timeout time.Duration
}

func NewStatusMirrorWorker(log *slog.Logger, mirror contract.StatusMirror, changes <-chan StatusChange, timeout time.Duration) *StatusMirrorWorker {
	return &StatusMirrorWorker{log: log, mirror: mirror, changes: changes, timeout: timeout}
}

func (w *StatusMirrorWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping status mirror")
			return ctx.Err()
		case change, ok := <-w.changes:
			if !ok {
				w.log.Debug("Status channel is closed")
				return nil
			}
			w.apply(ctx, change)
		}
	}
}

func (w *StatusMirrorWorker) apply(ctx context.Context, change StatusChange) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.mirror.SetUserStatus(ctx, change.UserID, change.Status, change.Message); err != nil {
		w.log.Warn("Unable to mirror user status", "user_id", change.UserID, "status", change.Status, "error", err)
	}
}
