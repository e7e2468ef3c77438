// Package sink holds the transports a live connection is delivered through.
package sink

import (
	"chat-live/errors"
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Config struct {
	BufferSize   int
	MaxFrameSize int64
	WriteTimeout time.Duration
	// PingInterval of zero disables heartbeats and read deadlines
	PingInterval time.Duration
	PongWait     time.Duration
}

// WebSocketSink is one WebSocket connection.
// Writes go through a bounded FIFO queue drained by WritePump, so Send never
// blocks on the network. Reads are done by a single goroutine through ReadFrame.
type WebSocketSink struct {
	id        uuid.UUID
	log       *slog.Logger
	conn      *websocket.Conn
	cfg       Config
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewWebSocketSink(log *slog.Logger, conn *websocket.Conn, cfg Config) *WebSocketSink {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval > 0 && cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = cfg.PingInterval * 10 / 9
	}
	id := uuid.New()
	s := &WebSocketSink{
		id:   id,
		log:  log.With("conn_id", id),
		conn: conn,
		cfg:  cfg,
		send: make(chan []byte, cfg.BufferSize),
		done: make(chan struct{}),
	}
	s.setupReadConnection()
	return s
}

func (s *WebSocketSink) ID() uuid.UUID { return s.id }

// Send enqueues payload. It fails with ErrSinkFull when the queue is full
// and ErrConnectionClosed once the sink is closed.
func (s *WebSocketSink) Send(_ context.Context, payload []byte) error {
	select {
	case <-s.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case s.send <- payload:
		return nil
	case <-s.done:
		return errors.ErrConnectionClosed
	default:
		return errors.ErrSinkFull
	}
}

// Close stops the write pump, which sends a close frame and releases the connection.
// It is safe to call several times.
func (s *WebSocketSink) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *WebSocketSink) Done() <-chan struct{} { return s.done }

func (s *WebSocketSink) setupReadConnection() {
	s.conn.SetReadLimit(s.cfg.MaxFrameSize)
	if s.cfg.PingInterval <= 0 {
		return
	}
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})
}

func (s *WebSocketSink) extendReadDeadline() {
	if s.cfg.PingInterval <= 0 {
		return
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait)); err != nil {
		s.log.Debug("Unable to set read deadline", "error", err)
	}
}

// ReadFrame blocks until the next text frame. Binary frames are skipped.
// Any error means the connection is no longer usable.
func (s *WebSocketSink) ReadFrame() ([]byte, error) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		s.extendReadDeadline()
		if messageType != websocket.TextMessage {
			s.log.Debug("Ignoring non text frame", "type", messageType)
			continue
		}
		return data, nil
	}
}

// WritePump drains the queue until the sink is closed or a write fails.
// It must run in its own goroutine, exactly once per sink.
func (s *WebSocketSink) WritePump() {
	var tick <-chan time.Time
	if s.cfg.PingInterval > 0 {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer s.closeConnection()

	for {
		select {
		case payload := <-s.send:
			if err := s.write(websocket.TextMessage, payload); err != nil {
				s.log.Debug("Write failed", "error", err)
				return
			}
		case <-tick:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				s.log.Debug("Ping failed", "error", err)
				return
			}
		case <-s.done:
			_ = s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *WebSocketSink) write(messageType int, payload []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, payload)
}

// closeConnection releases the socket, which also unblocks ReadFrame.
func (s *WebSocketSink) closeConnection() {
	_ = s.Close()
	if err := s.conn.Close(); err != nil && !stderrors.Is(err, websocket.ErrCloseSent) {
		s.log.Debug("Error closing connection", "error", err)
	}
}

// IsExpectedClose tells whether err is an ordinary end of connection.
func IsExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}
