package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the service configuration, parsed from the environment.
type Config struct {
	Port        string     `env:"PORT" envDefault:"8080"`
	Environment string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// Catalog source
	DataDir     string `env:"DATA_DIR" envDefault:"./data"`
	CatalogFile string `env:"CATALOG_FILE" envDefault:"cyberquest_quiz.json"`

	// Quiz thresholds
	WinAt  int `env:"WIN_AT" envDefault:"10"`
	LoseAt int `env:"LOSE_AT" envDefault:"5"`

	// Session store: "memory" or "redis"
	SessionBackend string        `env:"SESSION_BACKEND" envDefault:"memory"`
	RedisURL       string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"1h"`

	// Idle sweep for the in-memory backend
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`
	IdleTimeout   time.Duration `env:"IDLE_TIMEOUT" envDefault:"30m"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.SessionBackend != "memory" && cfg.SessionBackend != "redis" {
		return nil, fmt.Errorf("SESSION_BACKEND must be \"memory\" or \"redis\", got %q", cfg.SessionBackend)
	}
	return &cfg, nil
}

// CatalogPath returns the full path of the configured scenario file.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "scenarios", c.CatalogFile)
}
