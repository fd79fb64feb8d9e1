// internal/config/config.go
//
// Process configuration from the environment.
// A .env file in the working directory is loaded first, if present; variables
// already set in the environment win.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverS3       = "s3"
)

// Config is everything main needs to wire the process.
type Config struct {
	Port         string `env:"PORT"          envDefault:"5175"`
	LogLevel     string `env:"LOG_LEVEL"     envDefault:"info"`
	ClientOrigin string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"./data/players.db"`
	DatabaseURL string `env:"DATABASE_URL"`
	S3          S3

	BalanceFile string `env:"BALANCE_FILE"`

	SessionTimeout  time.Duration `env:"SESSION_TIMEOUT"   envDefault:"5m"`
	MatchTimeout    time.Duration `env:"MATCH_TIMEOUT"     envDefault:"10m"`
	ChallengeTTL    time.Duration `env:"CHALLENGE_TTL"     envDefault:"2m"`
	SecretTrimEdges bool          `env:"SECRET_TRIM_EDGES" envDefault:"false"`
}

// S3 locates the players object for the s3 driver.
type S3 struct {
	Bucket          string `env:"S3_BUCKET"`
	Key             string `env:"S3_KEY"               envDefault:"players.json"`
	Region          string `env:"S3_REGION"            envDefault:"us-east-1"`
	Endpoint        string `env:"S3_ENDPOINT"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
}

// Load reads .env (if any) and parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment without touching .env.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres driver")
		}
	case DriverS3:
		if c.S3.Bucket == "" {
			return errors.New("config: S3_BUCKET is required for the s3 driver")
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.SessionTimeout <= 0 || c.ChallengeTTL <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	if c.MatchTimeout <= c.SessionTimeout {
		return fmt.Errorf("config: MATCH_TIMEOUT (%s) must exceed SESSION_TIMEOUT (%s)", c.MatchTimeout, c.SessionTimeout)
	}
	return nil
}
