package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every runtime knob, loaded from environment variables.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	LogMode     string `env:"LOG_MODE" envDefault:"dev"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:""`
	DatabaseURL string `env:"DATABASE_URL" envDefault:""`

	ConsumerGroup string `env:"CONSUMER_GROUP" envDefault:"sync"`
	ArchiveGroup  string `env:"ARCHIVE_GROUP" envDefault:"archive"`

	PingInterval    time.Duration `env:"PING_INTERVAL" envDefault:"10s"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Score gap that makes a join count as a late-game hero entrance.
	LateGameGap int64 `env:"LATE_GAME_GAP" envDefault:"100"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing env config: %w", err)
	}
	return cfg, nil
}
