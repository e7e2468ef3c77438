package e2e

import (
	"chat-live/domain"
	"slices"
	"testing"

	"github.com/stretchr/testify/suite"
)

type testChatRoomSuite struct {
	BaseSuite
}

func TestChatRoomSuite(t *testing.T) {
	suite.Run(t, &testChatRoomSuite{})
}

func (s *testChatRoomSuite) TestTwoUsersTalkInARoom() {
	room := domain.RoomID(4242)
	alice := s.Connect("alice")
	bob := s.Connect("bob")

	s.Run("Step 1: both users join the room", func() {
		s.header("Joining room")
		s.Require().NoError(alice.Conn.Join(int64(room)))
		s.WaitFor(func() bool { return s.noticed(alice, room, "alice joined the room.") }, "alice should see her own join")

		s.Require().NoError(bob.Conn.Join(int64(room)))
		s.WaitFor(func() bool { return s.noticed(alice, room, "bob joined the room.") }, "alice should see bob joining")
	})

	s.Run("Step 2: a message reaches every subscriber", func() {
		s.header("Posting message")
		s.Require().NoError(alice.Conn.Post(int64(room), "hello bob"))

		s.WaitFor(func() bool { return len(bob.Timeline.Messages(room)) == 1 }, "bob should receive the message")
		msg := bob.Timeline.Messages(room)[0]
		s.Equal("hello bob", msg.Content)
		s.Equal(domain.UserID(alice.Credentials.UserID), msg.SenderID)
		s.Equal("alice", msg.SenderName)

		s.WaitFor(func() bool { return len(alice.Timeline.Messages(room)) == 1 }, "the sender receives its own message")
	})

	s.Run("Step 3: status updates are broadcast", func() {
		s.header("Updating status")
		s.Require().NoError(bob.Conn.SetStatus("away", nil))

		s.WaitFor(func() bool {
			p, ok := alice.Timeline.Presence(domain.UserID(bob.Credentials.UserID))
			return ok && p.Status == domain.StatusAway
		}, "alice should see bob away")
	})

	s.Run("Step 4: ping is answered", func() {
		s.Require().NoError(alice.Conn.Ping())
		s.WaitFor(func() bool { return alice.Timeline.Pongs() == 1 }, "pong expected")
	})

	s.Run("Step 5: leaving stops delivery", func() {
		s.header("Leaving room")
		s.Require().NoError(bob.Conn.Leave(int64(room)))
		s.WaitFor(func() bool { return s.noticed(alice, room, "bob left the room.") }, "alice should see bob leaving")

		s.Require().NoError(alice.Conn.Post(int64(room), "still there?"))
		s.WaitFor(func() bool { return len(alice.Timeline.Messages(room)) == 2 }, "alice receives her second message")
		s.Len(bob.Timeline.Messages(room), 1)
	})
}

func (s *testChatRoomSuite) noticed(p *Participant, room domain.RoomID, notice string) bool {
	return slices.Contains(p.Timeline.Notices(room), notice)
}
