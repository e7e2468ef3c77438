package main

import (
	"bufio"
	"chat-live/client"
	"chat-live/domain"
	"chat-live/domain/event"
	"chat-live/projection"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	ServerAddr string `env:"CHAT_SERVER_ADDR,default=http://localhost:8080"`
	RoomID     int64  `env:"CHAT_ROOM_ID,default=1"`
	Email      string `env:"CHAT_EMAIL,required=true"`
	Password   string `env:"CHAT_PASSWORD,required=true"`
	LogLevel   string `env:"LOG_LEVEL,default=WARN"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat-client terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run logs in, joins one room, posts every stdin line and prints what the
// room receives.
func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := client.NewAPI(config.ServerAddr).Login(ctx, config.Email, config.Password)
	if err != nil {
		return exitRuntime, err
	}
	wsURL, err := client.WebSocketURL(config.ServerAddr, creds.Token)
	if err != nil {
		return exitConfig, err
	}
	conn, err := client.Dial(ctx, log, wsURL)
	if err != nil {
		return exitRuntime, err
	}
	defer conn.Close()

	if err := conn.Join(config.RoomID); err != nil {
		return exitRuntime, err
	}

	timeline := projection.NewTimeline()
	go func() {
		for frame := range conn.Frames() {
			evt, err := timeline.ConsumeFrame(frame)
			if err != nil {
				log.Warn("Unreadable frame", "error", err)
				continue
			}
			render(os.Stdout, evt)
		}
		stop()
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := conn.Post(config.RoomID, line); err != nil {
				return exitRuntime, err
			}
		}
	}
}

func render(w io.Writer, evt event.DomainEvent) {
	switch e := evt.(type) {
	case event.MessagePosted:
		fmt.Fprintf(w, "%s %s: %s\n", e.CreatedAt.Local().Format("15:04"), color.Cyan.Render(e.Sender.Name), e.Content)
	case event.RoomNotice:
		fmt.Fprintln(w, color.Gray.Render("* "+e.Message))
	case event.PresenceChanged:
		line := fmt.Sprintf("~ user %d is %s", e.UserID, e.Status)
		if e.StatusMessage != nil && *e.StatusMessage != "" {
			line += " (" + *e.StatusMessage + ")"
		}
		if e.Status == domain.StatusOffline {
			fmt.Fprintln(w, color.Red.Render(line))
			return
		}
		fmt.Fprintln(w, color.Green.Render(line))
	}
}
