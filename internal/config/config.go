package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Server configures the relay and session API process.
type Server struct {
	Addr        string   `env:"TABLETOP_ADDR" envDefault:":8080"`
	DatabaseURL string   `env:"DATABASE_URL"`
	RedisAddr   string   `env:"REDIS_ADDR"`
	InstanceID  string   `env:"TABLETOP_INSTANCE_ID"`
	WSOrigins   []string `env:"TABLETOP_WS_ORIGINS" envSeparator:","`
	Log         Log
}

// Device configures one headless table client.
type Device struct {
	ServerURL      string        `env:"TABLETOP_SERVER_URL" envDefault:"http://localhost:8080"`
	SessionID      string        `env:"TABLETOP_SESSION_ID"`
	ClientID       string        `env:"TABLETOP_CLIENT_ID"`
	Role           string        `env:"TABLETOP_ROLE" envDefault:"host"`
	Heartbeat      time.Duration `env:"TABLETOP_HEARTBEAT" envDefault:"30s"`
	MaxReconnects  int           `env:"TABLETOP_MAX_RECONNECTS" envDefault:"10"`
	SaveDebounce   time.Duration `env:"TABLETOP_SAVE_DEBOUNCE" envDefault:"5s"`
	PollInterval   time.Duration `env:"TABLETOP_POLL_INTERVAL" envDefault:"10s"`
	RequestTimeout time.Duration `env:"TABLETOP_REQUEST_TIMEOUT" envDefault:"10s"`
	Log            Log
}

type Log struct {
	Level  string `env:"TABLETOP_LOG_LEVEL" envDefault:"info"`
	Format string `env:"TABLETOP_LOG_FORMAT" envDefault:"console"`
}

// Load reads an optional .env file and then parses the environment into target.
func Load(target any, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return ParseEnv(target)
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
