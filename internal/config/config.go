package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBDir    string     `env:"DB_DIR" envDefault:"data"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// RedisURL switches the document store to Redis for multi-instance
	// deployments. Empty keeps the in-process store.
	RedisURL string `env:"REDIS_URL"`

	// PrefsPath is the TOML preferences file location.
	PrefsPath string `env:"PREFS_PATH" envDefault:"data/prefs.toml"`

	// PublicBaseURL is what room join QR codes point at.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
