// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and MATCHDAY_* env vars on top of the defaults.
package config

import (
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/okian/matchday/internal/adapters/repository"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory finalization queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of finalization workers.
	WorkerCount int `koanf:"worker_count"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// StoreDriver is one of memory, sqlite3, postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is passed to the SQL driver; ignored for memory.
	StoreDSN string `koanf:"store_dsn"`

	// StoreMaxOpenConns caps the SQL connection pool. 0 keeps the driver
	// default (1 for sqlite3, unlimited for postgres).
	StoreMaxOpenConns int `koanf:"store_max_open_conns"`

	// StoreConnMaxLifetimeSec recycles pooled SQL connections. 0 never does.
	StoreConnMaxLifetimeSec int `koanf:"store_conn_max_lifetime_sec"`

	// NATSURL enables result notifications when set.
	NATSURL string `koanf:"nats_url"`

	// NATSSubject is the subject prefix for result notifications.
	NATSSubject string `koanf:"nats_subject"`

	// NATSEmbedded starts an in-process NATS server and publishes to it.
	NATSEmbedded bool `koanf:"nats_embedded"`

	// FinalizeIntervalSec is the period of the closed-game sweep. 0 disables it.
	FinalizeIntervalSec int `koanf:"finalize_interval_sec"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		MaxLeaderboardLimit: 100,
		StoreDriver:         repository.DriverMemory,
		NATSSubject:         "matchday.results",
		FinalizeIntervalSec: 60,
	}
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if !slices.Contains([]string{repository.DriverMemory, repository.DriverSQLite, repository.DriverPostgres, ""}, c.StoreDriver) {
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if c.StoreDriver != repository.DriverMemory && c.StoreDriver != "" && c.StoreDSN == "" {
		return fmt.Errorf("%w: store_dsn is required for %s", ErrInvalidConfig, c.StoreDriver)
	}
	if c.MaxLeaderboardLimit <= 0 {
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	if c.QueueSize < 0 || c.WorkerCount < 0 || c.FinalizeIntervalSec < 0 ||
		c.StoreMaxOpenConns < 0 || c.StoreConnMaxLifetimeSec < 0 {
		return fmt.Errorf("%w: sizes and intervals must not be negative", ErrInvalidConfig)
	}
	return nil
}

// StoreOptions turns the pool settings into repository options.
func (c *Config) StoreOptions() []repository.Option {
	var opts []repository.Option
	if c.StoreMaxOpenConns > 0 {
		opts = append(opts, repository.WithMaxOpenConns(c.StoreMaxOpenConns))
	}
	if c.StoreConnMaxLifetimeSec > 0 {
		opts = append(opts, repository.WithConnMaxLifetime(time.Duration(c.StoreConnMaxLifetimeSec)*time.Second))
	}
	return opts
}
