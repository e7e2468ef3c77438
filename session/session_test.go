package session

import (
	"chat-live/domain"
	"chat-live/domain/chat"
	"chat-live/errors"
	"chat-live/mocks"
	"chat-live/observability"
	"chat-live/runtime"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const waitFor = time.Second

// fakeTransport feeds frames to a session and records what it sends back
type fakeTransport struct {
	id         uuid.UUID
	frames     chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	closeCalls atomic.Int32
	mu         sync.Mutex
	sent       [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{id: uuid.New(), frames: make(chan []byte, 16), done: make(chan struct{})}
}

func (f *fakeTransport) ID() uuid.UUID { return f.id }

func (f *fakeTransport) Send(_ context.Context, payload []byte) error {
	select {
	case <-f.done:
		return errors.ErrConnectionClosed
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeCalls.Add(1)
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func (f *fakeTransport) ReadFrame() ([]byte, error) {
	select {
	case frame, ok := <-f.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	case <-f.done:
		return nil, errors.ErrConnectionClosed
	}
}

func (f *fakeTransport) push(frame string) { f.frames <- []byte(frame) }

func (f *fakeTransport) eventsOfType(typ string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []map[string]any
	for _, payload := range f.sent {
		var m map[string]any
		if err := json.Unmarshal(payload, &m); err != nil {
			continue
		}
		if m["type"] == typ {
			res = append(res, m)
		}
	}
	return res
}

type testEnv struct {
	hub     *runtime.Hub
	metrics *observability.Metrics
	decoder *chat.Decoder
	log     *slog.Logger
}

func newTestEnv(opts ...runtime.HubOption) testEnv {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hub := runtime.NewHub(log, metrics, runtime.HubConfig{PersistTimeout: time.Second}, opts...)
	return testEnv{hub: hub, metrics: metrics, decoder: chat.NewDecoder(100), log: log}
}

// start serves a session in the background and returns a channel closed when Serve returned
func (e testEnv) start(ctx context.Context, user domain.Identity, conn *fakeTransport) (*Session, chan error) {
	s := New(e.log, e.hub, e.metrics, e.decoder, nil, user, conn)
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	return s, done
}

var (
	alice = domain.Identity{ID: 1, Name: "alice"}
	bob   = domain.Identity{ID: 2, Name: "bob"}
	carol = domain.Identity{ID: 3, Name: "carol"}
)

func TestSession_Ping_Pong_Only_To_Sender(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()
	ctx := context.Background()
	a, b := newFakeTransport(), newFakeTransport()

	env.start(ctx, alice, a)
	env.start(ctx, bob, b)
	req.Eventually(func() bool { return env.hub.IsOnline(bob.ID) }, waitFor, time.Millisecond)

	// When A pings
	a.push(`{"type":"ping"}`)

	// Then only A receives a pong
	req.Eventually(func() bool { return len(a.eventsOfType("pong")) == 1 }, waitFor, time.Millisecond)
	req.Empty(b.eventsOfType("pong"))
}

func TestSession_Room_42_Scenario(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	persister := mocks.NewMockMessagePersister(ctrl)
	persister.EXPECT().PersistMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg domain.Message) (domain.Message, error) {
			msg.ID = 99
			return msg, nil
		}).Times(1)

	env := newTestEnv(runtime.WithPersistence(persister))
	ctx := context.Background()
	a, b, c := newFakeTransport(), newFakeTransport(), newFakeTransport()

	env.start(ctx, alice, a)
	env.start(ctx, bob, b)
	env.start(ctx, carol, c)

	// Given A and B in room 42
	a.push(`{"type":"join_room","roomId":42}`)
	req.Eventually(func() bool { return len(a.eventsOfType("system")) == 1 }, waitFor, time.Millisecond)
	b.push(`{"type":"join_room","roomId":"42"}`)
	req.Eventually(func() bool { return len(a.eventsOfType("system")) == 2 }, waitFor, time.Millisecond)
	req.Equal("bob joined the room.", a.eventsOfType("system")[1]["message"])

	// When A sends a message
	a.push(`{"type":"message","roomId":42,"content":"hi"}`)

	// Then A and B receive it with its id
	for _, conn := range []*fakeTransport{a, b} {
		req.Eventually(func() bool { return len(conn.eventsOfType("message")) == 1 }, waitFor, time.Millisecond)
		msg := conn.eventsOfType("message")[0]
		req.Equal("hi", msg["content"])
		req.Equal(float64(42), msg["roomId"])
		req.Equal(float64(99), msg["messageId"])
	}
	// And C, outside the room, does not
	req.Empty(c.eventsOfType("message"))
}

func TestSession_Two_Connections_Offline_Once(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()
	ctx := context.Background()
	observer, c1, c2 := newFakeTransport(), newFakeTransport(), newFakeTransport()

	env.start(ctx, bob, observer)
	_, done1 := env.start(ctx, alice, c1)
	_, done2 := env.start(ctx, alice, c2)
	req.Eventually(func() bool { return env.hub.Stats().Connections == 3 }, waitFor, time.Millisecond)

	offline := func() int {
		count := 0
		for _, e := range observer.eventsOfType("presence") {
			if e["userId"] == float64(alice.ID) && e["status"] == "offline" {
				count++
			}
		}
		return count
	}

	// When C1 disconnects
	close(c1.frames)
	req.NoError(<-done1)

	// Then alice stays online
	req.True(env.hub.IsOnline(alice.ID))
	req.Zero(offline())

	// When C2 disconnects
	close(c2.frames)
	req.NoError(<-done2)

	// Then exactly one offline presence is emitted
	req.False(env.hub.IsOnline(alice.ID))
	req.Equal(1, offline())
}

func TestSession_Malformed_Frames_Are_Ignored(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()
	ctx := context.Background()
	a := newFakeTransport()

	s, _ := env.start(ctx, alice, a)

	for _, frame := range []string{
		`not json`,
		`{"type":"dance"}`,
		`{"type":"join_room"}`,
		`{"type":"join_room","roomId":0}`,
		`{"type":"message","roomId":1,"content":""}`,
		`{"type":"status_update"}`,
	} {
		a.push(frame)
	}
	a.push(`{"type":"ping"}`)

	// The session survived every bad frame
	req.Eventually(func() bool { return len(a.eventsOfType("pong")) == 1 }, waitFor, time.Millisecond)
	req.Equal(StateServing, s.State())
	req.Equal(float64(1), testutil.ToFloat64(env.metrics.FramesDropped.WithLabelValues(observability.ReasonUnknown)))
	req.Equal(float64(5), testutil.ToFloat64(env.metrics.FramesDropped.WithLabelValues(observability.ReasonMalformed)))
	req.Zero(env.hub.Stats().ActiveRooms)
}

func TestSession_Rate_Limit_Drops_Frames(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()
	ctx := context.Background()
	a := newFakeTransport()

	// Given a budget of a single frame
	s := New(env.log, env.hub, env.metrics, env.decoder, NewRateLimiter(0.001, 1), alice, a)
	go func() { _ = s.Serve(ctx) }()

	a.push(`{"type":"ping"}`)
	a.push(`{"type":"ping"}`)

	req.Eventually(func() bool {
		return testutil.ToFloat64(env.metrics.FramesDropped.WithLabelValues(observability.ReasonRateLimited)) == 1
	}, waitFor, time.Millisecond)
	req.Len(a.eventsOfType("pong"), 1)
}

func TestSession_Status_Update_Reaches_Everyone(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()
	ctx := context.Background()
	a, b := newFakeTransport(), newFakeTransport()

	env.start(ctx, alice, a)
	env.start(ctx, bob, b)
	req.Eventually(func() bool { return env.hub.Stats().Connections == 2 }, waitFor, time.Millisecond)

	a.push(`{"type":"status_update","status":"away","statusMessage":"lunch"}`)

	expected := map[string]any{"type": "presence", "userId": float64(1), "status": "away", "statusMessage": "lunch"}
	for _, conn := range []*fakeTransport{a, b} {
		req.Eventually(func() bool {
			for _, e := range conn.eventsOfType("presence") {
				if assert.ObjectsAreEqual(expected, e) {
					return true
				}
			}
			return false
		}, waitFor, time.Millisecond)
	}
}

func TestSession_Teardown_Releases_Rooms(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()
	ctx := context.Background()
	a, b := newFakeTransport(), newFakeTransport()

	s, done := env.start(ctx, alice, a)
	env.start(ctx, bob, b)

	// Given A joined two rooms and left one of them again
	a.push(`{"type":"join_room","roomId":42}`)
	a.push(`{"type":"join_room","roomId":43}`)
	a.push(`{"type":"join_room","roomId":44}`)
	a.push(`{"type":"leave_room","roomId":44}`)
	req.Eventually(func() bool { return env.hub.Stats().ActiveRooms == 2 && len(a.eventsOfType("system")) == 3 }, waitFor, time.Millisecond)
	b.push(`{"type":"join_room","roomId":42}`)
	req.Eventually(func() bool { return len(b.eventsOfType("system")) == 1 }, waitFor, time.Millisecond)

	// When A's channel ends
	close(a.frames)
	req.NoError(<-done)

	// Then A is gone from every room, silently
	req.Equal(StateClosed, s.State())
	req.Equal(1, env.hub.Stats().ActiveRooms)
	req.Len(b.eventsOfType("system"), 1)
	req.GreaterOrEqual(a.closeCalls.Load(), int32(1))

	// And room traffic no longer reaches it
	b.push(`{"type":"message","roomId":42,"content":"alone"}`)
	req.Eventually(func() bool { return len(b.eventsOfType("message")) == 1 }, waitFor, time.Millisecond)
	req.Empty(a.eventsOfType("message"))
}

func TestSession_Context_Cancel_Tears_Down(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()
	ctx, cancel := context.WithCancel(context.Background())
	a := newFakeTransport()

	s, done := env.start(ctx, alice, a)
	req.Eventually(func() bool { return env.hub.IsOnline(alice.ID) }, waitFor, time.Millisecond)

	cancel()

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(waitFor):
		req.Fail("session did not stop")
	}
	req.Equal(StateClosed, s.State())
	req.False(env.hub.IsOnline(alice.ID))
}

func TestState_String(t *testing.T) {
	req := require.New(t)
	req.Equal("connecting", StateConnecting.String())
	req.Equal("serving", StateServing.String())
	req.Equal("closed", StateClosed.String())
}
