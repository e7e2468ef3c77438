// Package session runs the protocol of one live connection: it reads inbound
// frames, dispatches them to the hub and releases everything on teardown.
package session

import (
	"chat-live/contract"
	"chat-live/domain"
	"chat-live/domain/chat"
	"chat-live/errors"
	"chat-live/observability"
	"chat-live/runtime"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

type State int32

const (
	StateConnecting State = iota
	StateServing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateServing:
		return "serving"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is a connection that can also be read from.
type Transport interface {
	contract.Conn
	ReadFrame() ([]byte, error)
}

// Session exclusively owns one connection. A single goroutine reads, decodes
// and dispatches frames, so broadcasts caused by one connection are enqueued
// in the order its frames arrived.
type Session struct {
	log     *slog.Logger
	hub     *runtime.Hub
	metrics *observability.Metrics
	decoder *chat.Decoder
	limiter *rate.Limiter
	user    domain.Identity
	conn    Transport

	// rooms joined through this connection, only touched by the serving goroutine
	rooms map[domain.RoomID]struct{}

	state        atomic.Int32
	teardownOnce sync.Once
}

// NewRateLimiter returns the frame budget of one connection. A non positive
// rate means unlimited.
func NewRateLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func New(log *slog.Logger, hub *runtime.Hub, metrics *observability.Metrics, decoder *chat.Decoder,
	limiter *rate.Limiter, user domain.Identity, conn Transport) *Session {
	if limiter == nil {
		limiter = NewRateLimiter(0, 0)
	}
	return &Session{
		log:     log.With("user_id", user.ID, "conn_id", conn.ID()),
		hub:     hub,
		metrics: metrics,
		decoder: decoder,
		limiter: limiter,
		user:    user,
		conn:    conn,
		rooms:   make(map[domain.RoomID]struct{}),
	}
}

func (s *Session) State() State { return State(s.state.Load()) }

// Serve registers the connection, then processes frames until the connection
// fails, is closed or ctx is canceled. Teardown always runs before it returns.
// A nil error means the session ended normally.
func (s *Session) Serve(ctx context.Context) error {
	s.hub.Connect(ctx, s.user, s.conn)
	s.state.Store(int32(StateServing))
	defer s.teardown(context.WithoutCancel(ctx))

	// Canceling ctx unblocks the pending read
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, io.EOF) || stderrors.Is(err, errors.ErrConnectionClosed) {
				return nil
			}
			return err
		}
		s.handle(ctx, frame)
	}
}

// handle never fails: a frame that cannot be served is dropped.
func (s *Session) handle(ctx context.Context, frame []byte) {
	if !s.limiter.Allow() {
		s.drop(observability.ReasonRateLimited, errors.ErrRateLimited)
		return
	}

	cmd, err := s.decoder.Decode(frame)
	if err != nil {
		reason := observability.ReasonMalformed
		if stderrors.Is(err, errors.ErrUnknownEventType) {
			reason = observability.ReasonUnknown
		}
		s.drop(reason, err)
		return
	}
	s.metrics.FramesReceived.WithLabelValues(string(cmd.Type())).Inc()

	switch c := cmd.(type) {
	case chat.StatusUpdateCommand:
		s.hub.UpdateStatus(ctx, s.user, c.Status, c.StatusMessage)
	case chat.JoinRoomCommand:
		s.hub.JoinRoom(ctx, s.user, s.conn, c.Room)
		s.rooms[c.Room] = struct{}{}
	case chat.LeaveRoomCommand:
		s.hub.LeaveRoom(ctx, s.user, s.conn, c.Room)
		delete(s.rooms, c.Room)
	case chat.PostMessageCommand:
		s.hub.PostMessage(ctx, s.user, c.Room, c.Content)
	case chat.PingCommand:
		if err := s.hub.Pong(ctx, s.conn); err != nil {
			s.log.Debug("Pong not delivered", "error", err)
		}
	}
}

func (s *Session) drop(reason string, err error) {
	s.metrics.FramesDropped.WithLabelValues(reason).Inc()
	s.log.Debug("Frame dropped", "reason", reason, "error", err)
}

// teardown releases every joined room, unregisters the connection and closes it.
func (s *Session) teardown(ctx context.Context) {
	s.teardownOnce.Do(func() {
		s.hub.Disconnect(ctx, s.user, s.conn, lo.Keys(s.rooms))
		if err := s.conn.Close(); err != nil {
			s.log.Debug("Error closing connection", "error", err)
		}
		s.state.Store(int32(StateClosed))
		s.log.Debug("Session closed", "rooms", len(s.rooms))
	})
}
