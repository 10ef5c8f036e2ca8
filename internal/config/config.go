package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""

	// DefaultDBMaxConns caps the Postgres connection pool.
	DefaultDBMaxConns = 10

	// DefaultCheckInterval is the cadence of the deadline scan.
	DefaultCheckInterval = 5 * time.Minute

	// DefaultCallTimeout bounds every repository call and push made during a run.
	DefaultCallTimeout = 10 * time.Second

	// DefaultNominalEstimate is the assumed task duration until tasks carry their own estimate.
	DefaultNominalEstimate = 240 * time.Minute

	// DefaultRedisChannel is the pub/sub channel used for cross-process live delivery.
	DefaultRedisChannel = "taskpulse:notifications"

	// DefaultEnvFile is loaded on startup when present.
	DefaultEnvFile = ".env"
)

// Scheduler holds the tunables of the notification scheduler.
type Scheduler struct {
	CheckInterval   time.Duration
	CallTimeout     time.Duration
	NominalEstimate time.Duration
}

// Redis configures optional live-delivery fan-out. An empty URL disables it.
type Redis struct {
	URL     string
	Channel string
}

// Config is the fully resolved runtime configuration.
type Config struct {
	Port        string
	DatabaseURL string
	DBMaxConns  int32
	Scheduler   Scheduler
	Redis       Redis

	// OTLPMetrics enables metric export to the collector named by OTEL_EXPORTER_OTLP_* variables.
	OTLPMetrics bool
}

// Validate checks invariants that flag parsing cannot express.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("database max connections must be at least 1, got %d", c.DBMaxConns)
	}
	if c.Scheduler.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive, got %s", c.Scheduler.CheckInterval)
	}
	if c.Scheduler.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive, got %s", c.Scheduler.CallTimeout)
	}
	if c.Scheduler.NominalEstimate <= 0 {
		return fmt.Errorf("nominal estimate must be positive, got %s", c.Scheduler.NominalEstimate)
	}
	if c.Redis.URL != "" && c.Redis.Channel == "" {
		return fmt.Errorf("redis channel is required when redis URL is set")
	}
	return nil
}

// LoadEnvFile populates the process environment from path if the file exists.
// Variables already set in the environment win.
func LoadEnvFile(path string) (bool, error) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("load env file %s: %w", path, err)
	}
	return true, nil
}
