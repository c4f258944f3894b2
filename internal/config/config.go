// Package config provides configuration for the application
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Stream  StreamConfig
	Fixture FixtureConfig
	Logging LoggingConfig
	Service ServiceConfig
	Metrics MetricsConfig
}

// StreamConfig describes the simulated stream: its name, how many partitions
// divide it and how many records a default fetch returns.
type StreamConfig struct {
	Topic         string `env:"FAKESTREAM_TOPIC" envDefault:"fakestream"`
	NumPartitions int    `env:"FAKESTREAM_NUM_PARTITIONS" envDefault:"1"`
	BatchSize     int    `env:"FAKESTREAM_BATCH_SIZE" envDefault:"100"`
}

// FixtureConfig locates the dataset archive and the root for staging directories
type FixtureConfig struct {
	Path    string `env:"FAKESTREAM_FIXTURE_PATH,required"`
	TempDir string `env:"FAKESTREAM_TEMP_DIR"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// ServiceConfig holds service settings
type ServiceConfig struct {
	Name string `env:"SERVICE_NAME" envDefault:"fakestream"`
}

// MetricsConfig holds the metrics HTTP server settings.
// An empty Port disables the server.
type MetricsConfig struct {
	Port string `env:"METRICS_PORT"`
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	if cfg.Fixture.TempDir == "" {
		cfg.Fixture.TempDir = os.TempDir()
	}

	if err := cfg.Stream.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the stream settings
func (s *StreamConfig) Validate() error {
	if s.NumPartitions < 1 {
		return fmt.Errorf("FAKESTREAM_NUM_PARTITIONS must be at least 1, got: %d", s.NumPartitions)
	}
	if s.BatchSize < 1 {
		return fmt.Errorf("FAKESTREAM_BATCH_SIZE must be at least 1, got: %d", s.BatchSize)
	}
	return nil
}
