package main

import (
	"chat-live/auth"
	"chat-live/domain"
	"chat-live/domain/event"
	grpcserver "chat-live/infrastructure/grpc/server"
	httpserver "chat-live/infrastructure/http/server"
	"chat-live/infrastructure/storage"
	"chat-live/internal"
	"chat-live/moderation"
	"chat-live/observability"
	"chat-live/runtime"
	"chat-live/runtime/workers"
	"chat-live/services"
	"chat-live/sink"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat-live terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and keeps all cleanup in defers, so that the
// databases are closed even when startup fails halfway.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing Bluge index...")
		_ = blugeWriter.Close()
	}()

	userRepository, err := storage.NewUserRepository(db)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = userRepository.Release() }()

	messageRepository, err := storage.NewMessageRepository(db, log, config.PageSize())
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = messageRepository.Release() }()

	searchIndex := storage.NewSearchIndex(blugeWriter, log, config.PageSize())

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)
	monitoring := observability.NewMonitoringManager(log, 0)

	// 4. Services & background workers
	indexQueue := make(chan domain.Message, config.BufferSize)
	statusChanges := make(chan workers.StatusChange, config.BufferSize)

	tokens := auth.NewTokenManager(config.JwtSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, tokens)
	chatService := services.NewChatService(log, metrics, messageRepository, userRepository, searchIndex, indexQueue)

	sup := workers.NewSupervisor(log, config.RestartInterval).Add(
		workers.NewIndexWorker(log, searchIndex, indexQueue, config.PersistTimeout),
		workers.NewStatusMirrorWorker(log, chatService, statusChanges, config.PersistTimeout),
		monitoring,
	)

	// 5. Live runtime
	hubOptions := []runtime.HubOption{runtime.WithStatusMirror(statusChanges)}
	if config.PersistMessages {
		hubOptions = append(hubOptions, runtime.WithPersistence(chatService))
	}
	if config.EnableModeration {
		moderator, err := moderation.NewEmbeddedModerator(charReplacement, log)
		if err != nil {
			return exitConfig, fmt.Errorf("moderation setup failed: %w", err)
		}
		hubOptions = append(hubOptions, runtime.WithModeration(moderator))
	}
	hub := runtime.NewHub(log, metrics, runtime.HubConfig{
		NoticeType:     event.Type(config.RoomNoticeType),
		PersistTimeout: config.PersistTimeout,
	}, hubOptions...)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 7. Servers
	httpServer := httpserver.New(httpserver.Dependencies{
		Log:           log,
		Hub:           hub,
		Metrics:       metrics,
		Gatherer:      registry,
		Authenticator: auth.NewAuthenticator(tokens, userRepository),
		Tokens:        tokens,
		AuthService:   authService,
		ChatService:   chatService,
		Monitoring:    monitoring,
		DB:            db,
	}, httpserver.Config{
		Sink: sink.Config{
			BufferSize:   config.ConnectionBufferSize,
			MaxFrameSize: int64(config.MaxFrameSize),
			WriteTimeout: config.WriteTimeout,
			PingInterval: config.PingInterval,
			PongWait:     config.PongWait,
		},
		MaxContentLength:   config.MaxContentLength,
		RateLimitPerSecond: config.RateLimitPerSecond,
		RateLimitBurst:     config.RateLimitBurst,
		AllowedOrigins:     internal.SplitList(config.AllowedOrigins),
	})
	healthServer := grpcserver.NewHealthServer(log)

	// A failing server cancels the other one
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return httpServer.Serve(groupCtx, fmt.Sprintf("%s:%d", config.Host, config.Port), config.ShutdownTimeout)
	})
	group.Go(func() error {
		return healthServer.Listen(groupCtx, fmt.Sprintf("%s:%d", config.Host, config.GrpcPort))
	})
	if log.Enabled(ctx, slog.LevelDebug) {
		group.Go(func() error {
			return httpServer.ServeDebug(groupCtx, config.DebugPort)
		})
	}

	// 8. Wait for Stop or Error, then drain the workers
	serveErr := group.Wait()
	log.Info("Shutting down gracefully...")
	sup.Stop()
	<-supDone

	if serveErr != nil {
		return exitRuntime, serveErr
	}
	log.Info("Program stopped cleanly")
	return exitOK, nil
}
