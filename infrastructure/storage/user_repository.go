//go:generate go run go.uber.org/mock/mockgen -source=user_repository.go -destination=../../mocks/mock_user_repository.go -package=mocks
package storage

import (
	"chat-live/domain"
	"chat-live/errors"
	"context"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	userPrefix      = "user:"
	userEmailPrefix = "user_email:"
	userSequenceKey = "seq:user"
)

type IUserRepository interface {
	CreateUser(ctx context.Context, name, email, hashedPassword string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUserByID(ctx context.Context, id domain.UserID) (domain.User, error)
	UpdateStatus(ctx context.Context, id domain.UserID, status domain.Status, message *string) error
}

type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

// NewUserRepository leases user ids from a badger sequence. Release must be
// called before the database is closed.
func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte(userSequenceKey), 10)
	if err != nil {
		return nil, fmt.Errorf("user sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

func (u *UserRepository) Release() error {
	return u.seq.Release()
}

func userKey(id domain.UserID) []byte {
	return []byte(fmt.Sprintf("%s%019d", userPrefix, id))
}

func emailKey(email string) []byte {
	return []byte(userEmailPrefix + strings.ToLower(email))
}

// CreateUser persists a new account. Emails are unique, case insensitive.
func (u *UserRepository) CreateUser(_ context.Context, name, email, hashedPassword string) (domain.User, error) {
	next, err := u.seq.Next()
	if err != nil {
		return domain.User{}, fmt.Errorf("next user id: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           domain.UserID(next + 1),
		Name:         name,
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		Status:       domain.StatusOffline,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		id := make([]byte, 8)
		binary.BigEndian.PutUint64(id, uint64(user.ID))
		if err := txn.Set(emailKey(email), id); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), encodeUser(user))
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u *UserRepository) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(raw) != 8 {
			return fmt.Errorf("corrupted email index for %q", email)
		}
		user, err = getUser(txn, domain.UserID(binary.BigEndian.Uint64(raw)))
		return err
	})
	return user, notFound(err)
}

func (u *UserRepository) GetUserByID(_ context.Context, id domain.UserID) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	return user, notFound(err)
}

// UpdateStatus overwrites the stored status. The message is only overwritten when provided.
func (u *UserRepository) UpdateStatus(_ context.Context, id domain.UserID, status domain.Status, message *string) error {
	err := u.db.Update(func(txn *badger.Txn) error {
		user, err := getUser(txn, id)
		if err != nil {
			return err
		}
		user.Status = status
		if message != nil {
			user.StatusMessage = *message
		}
		user.UpdatedAt = time.Now().UTC()
		return txn.Set(userKey(id), encodeUser(user))
	})
	return notFound(err)
}

// ListUsers reads every stored user. It only needs a read transaction, so it
// also works on a database opened read-only.
func ListUsers(db *badger.DB) ([]domain.User, error) {
	var users []domain.User
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(userPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				user, err := decodeUser(val)
				if err != nil {
					return err
				}
				users = append(users, user)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return users, err
}

func getUser(txn *badger.Txn, id domain.UserID) (domain.User, error) {
	item, err := txn.Get(userKey(id))
	if err != nil {
		return domain.User{}, err
	}
	var user domain.User
	err = item.Value(func(val []byte) error {
		decoded, decodeErr := decodeUser(val)
		user = decoded
		return decodeErr
	})
	return user, err
}

func notFound(err error) error {
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrUserNotFound
	}
	return err
}
