package e2e

import (
	"chat-live/client"
	"chat-live/projection"
	"context"
	"fmt"
	"time"

	"github.com/gookit/color"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("E2E_SERVER_ADDR not set")
	}
}

// Participant is one registered user with an open connection and what it saw.
type Participant struct {
	Credentials client.Credentials
	Conn        *client.Conn
	Timeline    *projection.Timeline
}

func (s *BaseSuite) header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Connect registers a fresh user and opens its WebSocket session.
// Frames are projected in the background until the connection closes.
func (s *BaseSuite) Connect(name string) *Participant {
	s.header("Connecting " + name)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	email := fmt.Sprintf("%s-%s@e2e.local", name, uuid.NewString()[:8])
	creds, err := client.NewAPI(s.Config.ServerAddr).Register(ctx, name, email, "E2e-Password-42")
	s.Require().NoError(err, "register "+name)

	wsURL, err := client.WebSocketURL(s.Config.ServerAddr, creds.Token)
	s.Require().NoError(err)
	conn, err := client.Dial(ctx, logs.GetLoggerFromString("WARN"), wsURL)
	s.Require().NoError(err, "dial "+name)

	p := &Participant{Credentials: creds, Conn: conn, Timeline: projection.NewTimeline()}
	t := s.T()
	go func() {
		for frame := range conn.Frames() {
			if s.Config.DebugJSON {
				t.Logf("%s <- %s", name, frame)
			}
			if _, err := p.Timeline.ConsumeFrame(frame); err != nil {
				t.Logf("%s: unreadable frame %s: %v", name, frame, err)
			}
		}
	}()
	t.Cleanup(func() { _ = conn.Close() })
	return p
}

// WaitFor waits for a projected condition.
func (s *BaseSuite) WaitFor(condition func() bool, msg string) {
	s.Require().Eventually(condition, 5*time.Second, 20*time.Millisecond, msg)
}
