package main

import (
	"bytes"
	"chat-live/domain"
	"chat-live/infrastructure/storage"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestInspect_Users(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	// Given a database with one user
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	repo, err := storage.NewUserRepository(db)
	req.NoError(err)
	_, err = repo.CreateUser(context.Background(), "alice", "alice@example.com", "hash")
	req.NoError(err)
	req.NoError(repo.Release())
	req.NoError(db.Close())

	// When the users command runs
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"users", "--db", dir, "--plain"})
	req.NoError(cmd.Execute())

	// Then the user is printed
	req.Contains(out.String(), "alice@example.com")
	req.Contains(out.String(), "offline")
	req.Contains(out.String(), "1 users")
}

func TestInspect_Rooms(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	ctx := context.Background()

	// Given three messages in room 42 and one in room 7
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	repo, err := storage.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug), 10)
	req.NoError(err)
	for _, room := range []domain.RoomID{42, 42, 7, 42} {
		_, err := repo.StoreMessage(ctx, domain.Message{Room: room, SenderID: 1, SenderName: "alice", Content: "hi"})
		req.NoError(err)
	}
	req.NoError(repo.Release())
	req.NoError(db.Close())

	// When the rooms command runs
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"rooms", "--db", dir, "--plain"})
	req.NoError(cmd.Execute())

	// Then each room is counted, lowest id first
	lines := strings.FieldsFunc(out.String(), func(r rune) bool { return r == '\n' })
	req.Len(lines, 4)
	req.Equal([]string{"7", "1"}, strings.Fields(lines[1]))
	req.Equal([]string{"42", "3"}, strings.Fields(lines[2]))
	req.Equal("2 rooms", strings.TrimSpace(lines[3]))
}

func TestInspect_MessagesRequiresRoom(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"messages", "--db", t.TempDir()})

	req.Error(cmd.Execute())
}
