// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"net"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"

	"github.com/ARTFROST1/DuoLoveCursor/internal/game"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds every environment setting used by the binaries.
type Config struct {
	Port        string `env:"PORT"         envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PGHost           string `env:"PG_HOST"           envDefault:"localhost"`
	PGPort           string `env:"PG_PORT"           envDefault:"5432"`
	PGDatabase       string `env:"PG_DATABASE"       envDefault:"duolove"`

	RedisAddr          string `env:"REDIS_ADDR"`
	RedisDB            int    `env:"REDIS_DB"             envDefault:"0"`
	HistorianQueueName string `env:"HISTORIAN_QUEUE_NAME" envDefault:"duo_session_actions"`
	HistorianBatchSize int    `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	HistorianFlushMs   int    `env:"HISTORIAN_FLUSH_MS"   envDefault:"500"`

	TokenExpireTime    string `env:"TOKEN_EXPIRE_TIME"`
	AuthPrivateKeyPath string `env:"AUTH_PRIVATE_KEY_PATH"`
	AuthPublicKeyPath  string `env:"AUTH_PUBLIC_KEY_PATH"`

	ReadyDelay     time.Duration `env:"READY_DELAY"      envDefault:"500ms"`
	Countdown      time.Duration `env:"COUNTDOWN"        envDefault:"3s"`
	RevealDelay    time.Duration `env:"REVEAL_DELAY"     envDefault:"3s"`
	NextRoundDelay time.Duration `env:"NEXT_ROUND_DELAY" envDefault:"1500ms"`
	PrefillGrace   time.Duration `env:"PREFILL_GRACE"    envDefault:"2s"`
	QuizRounds     int           `env:"QUIZ_ROUNDS"      envDefault:"5"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the binaries cannot run with.
func (c Config) Validate() error {
	if c.StoreDriver != DriverPostgres && c.StoreDriver != DriverMemory {
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StoreDriver)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.QuizRounds <= 0 {
		return fmt.Errorf("QUIZ_ROUNDS must be positive, got %d", c.QuizRounds)
	}
	if c.HistorianBatchSize <= 0 {
		return fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive, got %d", c.HistorianBatchSize)
	}
	if c.HistorianFlushMs <= 0 {
		return fmt.Errorf("HISTORIAN_FLUSH_MS must be positive, got %d", c.HistorianFlushMs)
	}
	if (c.AuthPrivateKeyPath == "") != (c.AuthPublicKeyPath == "") {
		return fmt.Errorf("AUTH_PRIVATE_KEY_PATH and AUTH_PUBLIC_KEY_PATH must be set together")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

// PostgresDSN builds the connection string from the PG_* settings.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPassword, net.JoinHostPort(c.PGHost, c.PGPort), c.PGDatabase)
}

// Level returns the parsed log level. Validate has already accepted it.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// HistorianFlushInterval is how often a partial batch is flushed.
func (c Config) HistorianFlushInterval() time.Duration {
	return time.Duration(c.HistorianFlushMs) * time.Millisecond
}

// Timing returns the controller delays.
func (c Config) Timing() game.Timing {
	return game.Timing{
		ReadyDelay:     c.ReadyDelay,
		Countdown:      c.Countdown,
		RevealDelay:    c.RevealDelay,
		NextRoundDelay: c.NextRoundDelay,
		PrefillGrace:   c.PrefillGrace,
		QuizRounds:     c.QuizRounds,
	}
}
