package sink

import (
	"chat-live/errors"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// newPair returns a server side sink and the client side of the same socket
func newPair(t *testing.T, cfg Config, startPump bool) (*WebSocketSink, *websocket.Conn) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	sinks := make(chan *WebSocketSink, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := NewWebSocketSink(log, conn, cfg)
		if startPump {
			go s.WritePump()
		}
		sinks <- s
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case s := <-sinks:
		return s, client
	case <-time.After(time.Second):
		t.Fatal("server side sink not created")
		return nil, nil
	}
}

func TestWebSocketSink_Send_Delivers_In_Order(t *testing.T) {
	req := require.New(t)
	s, client := newPair(t, Config{BufferSize: 8}, true)

	req.NoError(s.Send(context.Background(), []byte(`{"n":1}`)))
	req.NoError(s.Send(context.Background(), []byte(`{"n":2}`)))

	for _, expected := range []string{`{"n":1}`, `{"n":2}`} {
		req.NoError(client.SetReadDeadline(time.Now().Add(time.Second)))
		messageType, data, err := client.ReadMessage()
		req.NoError(err)
		req.Equal(websocket.TextMessage, messageType)
		req.Equal(expected, string(data))
	}
}

func TestWebSocketSink_Send_Full_Queue(t *testing.T) {
	req := require.New(t)
	// Given no write pump draining the queue
	s, _ := newPair(t, Config{BufferSize: 1}, false)

	req.NoError(s.Send(context.Background(), []byte("a")))

	// Then the next send fails without blocking
	req.ErrorIs(s.Send(context.Background(), []byte("b")), errors.ErrSinkFull)
}

func TestWebSocketSink_Close(t *testing.T) {
	req := require.New(t)
	s, client := newPair(t, Config{BufferSize: 1}, true)

	// When the sink is closed twice
	req.NoError(s.Close())
	req.NoError(s.Close())

	// Then sends fail
	req.ErrorIs(s.Send(context.Background(), []byte("late")), errors.ErrConnectionClosed)

	// And the client receives a normal close
	req.NoError(client.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := client.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.CloseNormalClosure))

	// And the server side reader is released
	_, err = s.ReadFrame()
	req.Error(err)
}

func TestWebSocketSink_ReadFrame(t *testing.T) {
	req := require.New(t)
	s, client := newPair(t, Config{}, true)

	req.NoError(client.WriteMessage(websocket.BinaryMessage, []byte{0x01}))
	req.NoError(client.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))

	// Binary frames are skipped
	frame, err := s.ReadFrame()
	req.NoError(err)
	req.Equal(`{"type":"ping"}`, string(frame))

	// When the client goes away
	req.NoError(client.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "")))
	_, err = s.ReadFrame()
	req.True(IsExpectedClose(err))
}

func TestWebSocketSink_Frame_Too_Large(t *testing.T) {
	req := require.New(t)
	s, client := newPair(t, Config{MaxFrameSize: 16}, true)

	req.NoError(client.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 64))))

	_, err := s.ReadFrame()
	req.ErrorIs(err, websocket.ErrReadLimit)
}

func TestWebSocketSink_Heartbeat(t *testing.T) {
	req := require.New(t)
	_, client := newPair(t, Config{PingInterval: 20 * time.Millisecond, PongWait: time.Second}, true)

	pings := make(chan struct{}, 10)
	client.SetPingHandler(func(string) error {
		pings <- struct{}{}
		return nil
	})
	// Control frames are only processed while reading
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pings:
	case <-time.After(time.Second):
		req.Fail("no ping received")
	}
}
