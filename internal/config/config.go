// Package config loads server settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port          int           `env:"PORT" envDefault:"8080"`
	DatabaseType  string        `env:"DATABASE_TYPE" envDefault:"sqlite"`
	DatabaseURL   string        `env:"DATABASE_URL" envDefault:"hunt.db"`
	PublicURL     string        `env:"PUBLIC_URL"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5s"`
	RoomIdle      time.Duration `env:"ROOM_IDLE_TIMEOUT" envDefault:"30m"`
	Debug         bool          `env:"DEBUG"`

	OTelEnabled  bool   `env:"HUNT_OTEL_ENABLED"`
	OTelEndpoint string `env:"HUNT_OTEL_ENDPOINT"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads envFiles (missing files are skipped) and then the environment.
// Variables already set in the environment win over the files.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("DATABASE_TYPE %q: want sqlite, postgres or memory", c.DatabaseType)
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("PUBLIC_URL %q is not an absolute URL", c.PublicURL)
		}
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LogLevel is debug when DEBUG is set
func (c Config) LogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
