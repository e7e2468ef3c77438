// Package server exposes the HTTP surface of the chat: authentication, the
// WebSocket endpoint, history, search, presence and operational endpoints.
package server

import (
	"chat-live/auth"
	"chat-live/contract"
	"chat-live/domain/chat"
	"chat-live/infrastructure/storage"
	"chat-live/internal"
	"chat-live/observability"
	"chat-live/runtime"
	"chat-live/services"
	"chat-live/sink"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Sink               sink.Config
	MaxContentLength   int
	RateLimitPerSecond float64
	RateLimitBurst     int
	AllowedOrigins     []string
}

// Dependencies are the collaborators of the server. DB and Monitoring are
// optional: without DB the inspector is not mounted.
type Dependencies struct {
	Log           *slog.Logger
	Hub           *runtime.Hub
	Metrics       *observability.Metrics
	Gatherer      prometheus.Gatherer
	Authenticator contract.Authenticator
	Tokens        *auth.TokenManager
	AuthService   services.IAuthService
	ChatService   services.IChatService
	Monitoring    *observability.MonitoringManager
	DB            *badger.DB
}

type Server struct {
	Dependencies
	cfg      Config
	decoder  *chat.Decoder
	upgrader websocket.Upgrader

	// sessions outlive their upgrade request, they are bound to baseCtx
	baseCtx  context.Context
	cancel   context.CancelFunc
	sessions sync.WaitGroup
}

func New(deps Dependencies, cfg Config) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	origins := NewOriginPolicy(deps.Log, cfg.AllowedOrigins)
	return &Server{
		Dependencies: deps,
		cfg:          cfg,
		decoder:      chat.NewDecoder(cfg.MaxContentLength),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.Check,
		},
		baseCtx: baseCtx,
		cancel:  cancel,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.handleWebSocket)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.With(auth.Middleware(s.Tokens, s.writeError)).Get("/me", s.handleMe)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.Tokens, s.writeError))
		r.Get("/presence", s.handlePresence)
		r.Get("/rooms/{roomId}/messages", s.handleMessages)
		r.Get("/rooms/{roomId}/messages/search", s.handleSearch)
		r.Get("/debug/stats", s.handleStats)
	})
	return r
}

// DebugRoutes serves the badger inspector. It carries stored emails and
// message contents, so it is only mounted by ServeDebug on the loopback interface.
func (s *Server) DebugRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/stats", s.handleStats)
	if s.DB != nil {
		r.Get("/inspect", internal.InspectHandler(s.DB, storage.MapRow, s.statsMap))
	}
	return r
}

// ServeDebug blocks until ctx is canceled.
func (s *Server) ServeDebug(ctx context.Context, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	debugServer := &http.Server{
		Addr:              addr,
		Handler:           s.DebugRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = debugServer.Close()
	}()

	s.Log.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://%s/inspect", addr))
	if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Serve blocks until ctx is canceled, then drains HTTP requests and live
// sessions within shutdownTimeout.
func (s *Server) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	s.Shutdown(shutdownCtx)
	return err
}

// Shutdown ends every live session and waits for their teardown.
func (s *Server) Shutdown(ctx context.Context) {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.Log.Info("All sessions closed")
	case <-ctx.Done():
		s.Log.Warn("Shutdown timeout, sessions still open", "stats", s.Hub.Stats())
	}
}
