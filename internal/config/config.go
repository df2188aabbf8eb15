package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const Prefix = "SENTINEL_"

var ErrInvalid = errors.New("invalid config")

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":9090"`

	Env      string `env:"ENV" envDefault:"dev"` // "dev" | "prod"
	LogLevel string `env:"LOG_LEVEL"`

	// DB
	DBPath  string `env:"DB_PATH" envDefault:"./data/sentinel.db"`
	SeedDev bool   `env:"SEED_DEV"`

	// Engine
	TickInterval      time.Duration `env:"TICK_INTERVAL" envDefault:"7s"`
	DeniedProbability float64       `env:"DENIED_PROBABILITY" envDefault:"0.1"`

	// Device presence
	PresenceTimeout       time.Duration `env:"PRESENCE_TIMEOUT" envDefault:"2m"`
	PresenceSweepInterval time.Duration `env:"PRESENCE_SWEEP_INTERVAL" envDefault:"30s"`

	// Fan-out
	RedisURL      string `env:"REDIS_URL"`
	RedisChannel  string `env:"REDIS_CHANNEL" envDefault:"sentinel:events"`
	NotifyWorkers int    `env:"NOTIFY_WORKERS" envDefault:"2"`

	// Optional AI summary; disabled when the key is empty.
	OpenAIKey   string `env:"OPENAI_API_KEY"`
	OpenAIModel string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse(nil)
}

// Parse reads configuration from environ, or from the process environment
// when environ is nil.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      Prefix,
		Environment: environ,
	}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}

	if cfg.DeniedProbability < 0 || cfg.DeniedProbability > 1 {
		return Config{}, fmt.Errorf("%w: DENIED_PROBABILITY %v outside [0,1]", ErrInvalid, cfg.DeniedProbability)
	}
	if cfg.TickInterval <= 0 {
		return Config{}, fmt.Errorf("%w: TICK_INTERVAL must be positive", ErrInvalid)
	}
	if cfg.PresenceTimeout <= 0 || cfg.PresenceSweepInterval <= 0 {
		return Config{}, fmt.Errorf("%w: presence durations must be positive", ErrInvalid)
	}
	if cfg.NotifyWorkers < 1 {
		cfg.NotifyWorkers = 1
	}
	return cfg, nil
}
