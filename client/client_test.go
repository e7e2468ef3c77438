package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

// echoServer replies to every frame with the frame itself
func echoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(messageType, data); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"userId":4,"name":"alice","token":"good"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func next(t *testing.T, c *Conn) map[string]any {
	t.Helper()
	select {
	case frame := <-c.Frames():
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(frame, &decoded))
		return decoded
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func TestConn_SendsProtocolFrames(t *testing.T) {
	req := require.New(t)
	srv := echoServer(t)
	ctx := context.Background()

	creds, err := NewAPI(srv.URL).Login(ctx, "alice@example.com", "secret")
	req.NoError(err)
	req.Equal(int64(4), creds.UserID)

	wsURL, err := WebSocketURL(srv.URL, creds.Token)
	req.NoError(err)
	conn, err := Dial(ctx, logs.GetLoggerFromLevel(slog.LevelDebug), wsURL)
	req.NoError(err)
	defer conn.Close()

	req.NoError(conn.Join(42))
	req.Equal(map[string]any{"type": "join_room", "roomId": float64(42)}, next(t, conn))

	req.NoError(conn.Post(42, "hello"))
	req.Equal(map[string]any{"type": "message", "roomId": float64(42), "content": "hello"}, next(t, conn))

	req.NoError(conn.SetStatus("away", lo.ToPtr("lunch")))
	req.Equal(map[string]any{"type": "status_update", "status": "away", "statusMessage": "lunch"}, next(t, conn))

	req.NoError(conn.Leave(42))
	req.Equal("leave_room", next(t, conn)["type"])

	req.NoError(conn.Ping())
	req.Equal(map[string]any{"type": "ping"}, next(t, conn))
}

func TestAPI_LoginFailure(t *testing.T) {
	req := require.New(t)
	srv := echoServer(t)

	_, err := NewAPI(srv.URL).Login(context.Background(), "alice@example.com", "wrong")

	req.ErrorContains(err, "401")
	req.ErrorContains(err, "invalid credentials")
}

func TestDial_Unauthorized(t *testing.T) {
	req := require.New(t)
	srv := echoServer(t)
	wsURL, err := WebSocketURL(srv.URL, "bad")
	req.NoError(err)

	_, err = Dial(context.Background(), logs.GetLoggerFromLevel(slog.LevelDebug), wsURL)

	req.ErrorIs(err, websocket.ErrBadHandshake)
}

func TestWebSocketURL(t *testing.T) {
	req := require.New(t)

	u, err := WebSocketURL("https://chat.example.com/", "a b")
	req.NoError(err)
	req.Equal("wss://chat.example.com/ws?token=a+b", u)

	u, err = WebSocketURL("http://localhost:8080", "t")
	req.NoError(err)
	req.Equal("ws://localhost:8080/ws?token=t", u)
}
