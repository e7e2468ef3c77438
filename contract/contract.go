//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-live/domain"
	"context"
	"reflect"

	"github.com/google/uuid"
)

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Conn is one live client channel. Two Conns are equal only when they are the
// same channel, so implementations must be pointer types.
type Conn interface {
	ID() uuid.UUID
	// Send enqueues an already serialized frame. It must not block on the network.
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Authenticator resolves the credentials presented when a connection is opened.
type Authenticator interface {
	AuthenticateConnection(ctx context.Context, credentials string) (domain.Identity, error)
}

// MessagePersister stores a chat message and returns it with its server-assigned id and timestamp.
type MessagePersister interface {
	PersistMessage(ctx context.Context, msg domain.Message) (domain.Message, error)
}

// StatusMirror copies presence changes into durable storage.
type StatusMirror interface {
	SetUserStatus(ctx context.Context, userID domain.UserID, status domain.Status, message *string) error
}

// MessageIndexer makes stored messages searchable.
type MessageIndexer interface {
	Index(ctx context.Context, msg domain.Message) error
}
