// Package client is a Go client of the chat-live server: the HTTP auth API
// and the WebSocket protocol.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Credentials struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Token  string `json:"token"`
}

// API calls the HTTP endpoints of the server.
type API struct {
	baseURL string
	http    *http.Client
}

func NewAPI(baseURL string) *API {
	return &API{baseURL: strings.TrimSuffix(baseURL, "/"), http: &http.Client{Timeout: 10 * time.Second}}
}

func (a *API) Register(ctx context.Context, name, email, password string) (Credentials, error) {
	return a.authenticate(ctx, "/auth/register", map[string]string{"name": name, "email": email, "password": password})
}

func (a *API) Login(ctx context.Context, email, password string) (Credentials, error) {
	return a.authenticate(ctx, "/auth/login", map[string]string{"email": email, "password": password})
}

func (a *API) authenticate(ctx context.Context, path string, body map[string]string) (Credentials, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Credentials{}, err
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return Credentials{}, err
	}
	r.Header.Set("Content-Type", "application/json")

	res, err := a.http.Do(r)
	if err != nil {
		return Credentials{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		return Credentials{}, fmt.Errorf("%s: %d %s", path, res.StatusCode, apiErr.Error)
	}

	var creds Credentials
	if err := json.NewDecoder(res.Body).Decode(&creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// WebSocketURL turns http(s)://host into ws(s)://host/ws?token=...
func WebSocketURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

type outbound struct {
	Type          string  `json:"type"`
	Status        *string `json:"status,omitempty"`
	StatusMessage *string `json:"statusMessage,omitempty"`
	RoomID        *int64  `json:"roomId,omitempty"`
	Content       *string `json:"content,omitempty"`
}

// Conn is a live WebSocket session. Frames are delivered in arrival order
// until the connection ends, then the channel is closed.
type Conn struct {
	log       *slog.Logger
	ws        *websocket.Conn
	frames    chan []byte
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func Dial(ctx context.Context, log *slog.Logger, wsURL string) (*Conn, error) {
	ws, res, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", wsURL, err, res.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	c := &Conn{log: log, ws: ws, frames: make(chan []byte, 64)}
	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	defer close(c.frames)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.log.Debug("Read loop stopped", "error", err)
			return
		}
		c.frames <- data
	}
}

func (c *Conn) Frames() <-chan []byte { return c.frames }

func (c *Conn) send(frame outbound) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Conn) Ping() error {
	return c.send(outbound{Type: "ping"})
}

func (c *Conn) SetStatus(status string, message *string) error {
	return c.send(outbound{Type: "status_update", Status: &status, StatusMessage: message})
}

func (c *Conn) Join(room int64) error {
	return c.send(outbound{Type: "join_room", RoomID: &room})
}

func (c *Conn) Leave(room int64) error {
	return c.send(outbound{Type: "leave_room", RoomID: &room})
}

func (c *Conn) Post(room int64, content string) error {
	return c.send(outbound{Type: "message", RoomID: &room, Content: &content})
}

// Close sends a normal closure then drops the socket.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
