package server

import (
	"chat-live/auth"
	"chat-live/session"
	"chat-live/sink"
	"net/http"
)

// handleWebSocket authenticates before upgrading: a rejected client gets a
// plain error status (401 for bad credentials) and never becomes a connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := s.Authenticator.AuthenticateConnection(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		s.Log.Debug("WebSocket authentication failed", "remote_addr", r.RemoteAddr, "error", err)
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied
		s.Log.Warn("WebSocket upgrade failed", "user_id", user.ID, "error", err)
		return
	}

	ws := sink.NewWebSocketSink(s.Log, conn, s.cfg.Sink)
	limiter := session.NewRateLimiter(s.cfg.RateLimitPerSecond, s.cfg.RateLimitBurst)
	sess := session.New(s.Log, s.Hub, s.Metrics, s.decoder, limiter, user, ws)

	s.sessions.Add(1)
	go ws.WritePump()
	go func() {
		defer s.sessions.Done()
		if err := sess.Serve(s.baseCtx); err != nil && !sink.IsExpectedClose(err) {
			s.Log.Warn("Session ended with error", "user_id", user.ID, "error", err)
		}
	}()
}
