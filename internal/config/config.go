// Package config provides hierarchical configuration loading for the
// mediaagent service: defaults < YAML < ENV.
package config

import (
	"time"

	"github.com/rvndrmann/mannmediaagency-sub000/internal/telemetry"
	"github.com/rvndrmann/mannmediaagency-sub000/logging"
)

// Config holds all service configuration.
type Config struct {
	Server    Server           `yaml:"server"`
	Runner    Runner           `yaml:"runner"`
	Model     Model            `yaml:"model"`
	Postgres  Postgres         `yaml:"postgres"`
	Cache     Cache            `yaml:"cache"`
	NATS      NATS             `yaml:"nats"`
	Logging   Logging          `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// Server holds HTTP server configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Runner holds orchestration configuration.
type Runner struct {
	MaxTurns              int    `yaml:"max_turns"`
	StartAgent            string `yaml:"start_agent"`
	ContinueWithLastAgent bool   `yaml:"continue_with_last_agent"`
	MaxHistoryMessages    int    `yaml:"max_history_messages"`
	// DefaultCredits seeds runs that do not state a balance.
	DefaultCredits int `yaml:"default_credits"`
}

// Model selects the completion backend.
type Model struct {
	Provider    string        `yaml:"provider"` // openai, anthropic, remote, mock
	Name        string        `yaml:"name"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int64         `yaml:"max_tokens"`
	RemoteURL   string        `yaml:"remote_url"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Postgres holds PostgreSQL connection pool configuration. An empty DSN
// selects the in-memory stores.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	HealthCheck     time.Duration `yaml:"health_check"`
}

// Cache configures the command execution-state cache.
type Cache struct {
	CommandTTL time.Duration `yaml:"command_ttl"`
	MaxCostMB  int64         `yaml:"max_cost_mb"`
}

// NATS holds event bus configuration. An empty URL disables publishing.
type NATS struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Logging holds logger configuration.
type Logging struct {
	Backend string `yaml:"backend"` // slog or zap
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // json or text
}

// LoggerConfig converts the section into a logging.Config.
func (l Logging) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Backend = l.Backend
	cfg.Level = logging.ParseLevel(l.Level)
	cfg.Format = l.Format

	return cfg
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Runner: Runner{
			MaxTurns:           10,
			StartAgent:         "main",
			MaxHistoryMessages: 50,
		},
		Model: Model{
			Provider:    "openai",
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     60 * time.Second,
		},
		Postgres: Postgres{
			MaxConns:        15,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
			HealthCheck:     time.Minute,
		},
		Cache: Cache{
			CommandTTL: time.Hour,
			MaxCostMB:  64,
		},
		NATS: NATS{
			SubjectPrefix: "mediaagent",
		},
		Logging: Logging{
			Backend: "slog",
			Level:   "info",
			Format:  "json",
		},
		Telemetry: telemetry.Config{
			ServiceName: "mediaagent",
			Insecure:    true,
		},
	}
}
