package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries the process configuration, parsed from the environment
// after an optional local .env file is loaded.
type Config struct {
	Addr           string `env:"TRACKER_ADDR" envDefault:":8080"`
	OperationalDB  string `env:"TRACKER_DB_PATH" envDefault:"tracker.db"`
	ProfileDB      string `env:"TRACKER_PROFILE_DB_PATH" envDefault:"profiles.db"`
	GoogleClientID string `env:"TRACKER_GOOGLE_CLIENT_ID"`
}

func Load() (*Config, error) {
	// Missing .env is fine; the environment may be set by the deployment.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
