package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8080"`
	GrpcPort int    `env:"GRPC_PORT,default=9090"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`
	// DebugPort serves the badger inspector on 127.0.0.1 when LOG_LEVEL is DEBUG
	DebugPort int `env:"DEBUG_PORT,default=8081"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	JwtSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	ConnectionBufferSize int  `env:"CONNECTION_BUFFER_SIZE,default=256"`
	BufferSize           int  `env:"BUFFER_SIZE,default=1024"`
	LimitMessages        *int `env:"LIMIT_MESSAGES"`
	MaxContentLength     int  `env:"MAX_CONTENT_LENGTH,default=2000"`
	MaxFrameSize         int  `env:"MAX_FRAME_SIZE,default=65536"`

	PersistMessages bool          `env:"PERSIST_MESSAGES,default=true"`
	PersistTimeout  time.Duration `env:"PERSIST_TIMEOUT,default=2s"`
	RoomNoticeType  string        `env:"ROOM_NOTICE_TYPE,default=system"`

	PingInterval time.Duration `env:"PING_INTERVAL,default=30s"`
	PongWait     time.Duration `env:"PONG_WAIT,default=60s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=10s"`

	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND,default=20"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST,default=40"`

	EnableModeration bool   `env:"ENABLE_MODERATION,default=true"`
	CharReplacement  string `env:"CHARACTER_REPLACEMENT,default=*"`

	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// PageSize is the number of messages returned per history page.
func (c Config) PageSize() int {
	if c.LimitMessages == nil || *c.LimitMessages <= 0 {
		return 50
	}
	return *c.LimitMessages
}

func (c Config) Validate() error {
	if c.MaxFrameSize <= 0 {
		return fmt.Errorf("MAX_FRAME_SIZE must be positive, got %d", c.MaxFrameSize)
	}
	if c.ConnectionBufferSize <= 0 || c.BufferSize <= 0 {
		return fmt.Errorf("CONNECTION_BUFFER_SIZE and BUFFER_SIZE must be positive")
	}
	if c.PingInterval > 0 && c.PongWait <= c.PingInterval {
		return fmt.Errorf("PONG_WAIT (%s) must be greater than PING_INTERVAL (%s)", c.PongWait, c.PingInterval)
	}
	switch c.RoomNoticeType {
	case "system", "room_update":
	default:
		return fmt.Errorf("ROOM_NOTICE_TYPE must be system or room_update, got %q", c.RoomNoticeType)
	}
	_, err := CharacterRune(c.CharReplacement)
	return err
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

// SplitList splits a comma separated variable, dropping blanks.
func SplitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
