package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "mediaagent.yaml"

var providers = map[string]bool{"openai": true, "anthropic": true, "remote": true, "mock": true}

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "MEDIAAGENT_ADDR")
	setDuration(&cfg.Server.ShutdownTimeout, "MEDIAAGENT_SHUTDOWN_TIMEOUT")

	setInt(&cfg.Runner.MaxTurns, "MEDIAAGENT_MAX_TURNS")
	setString(&cfg.Runner.StartAgent, "MEDIAAGENT_START_AGENT")
	setBool(&cfg.Runner.ContinueWithLastAgent, "MEDIAAGENT_CONTINUE_WITH_LAST_AGENT")
	setInt(&cfg.Runner.MaxHistoryMessages, "MEDIAAGENT_MAX_HISTORY")
	setInt(&cfg.Runner.DefaultCredits, "MEDIAAGENT_DEFAULT_CREDITS")

	setString(&cfg.Model.Provider, "MEDIAAGENT_MODEL_PROVIDER")
	setString(&cfg.Model.Name, "MEDIAAGENT_MODEL_NAME")
	setFloat64(&cfg.Model.Temperature, "MEDIAAGENT_MODEL_TEMPERATURE")
	setInt64(&cfg.Model.MaxTokens, "MEDIAAGENT_MODEL_MAX_TOKENS")
	setString(&cfg.Model.RemoteURL, "MEDIAAGENT_MODEL_REMOTE_URL")
	setString(&cfg.Model.APIKey, "MEDIAAGENT_MODEL_API_KEY")
	setDuration(&cfg.Model.Timeout, "MEDIAAGENT_MODEL_TIMEOUT")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "MEDIAAGENT_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "MEDIAAGENT_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "MEDIAAGENT_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "MEDIAAGENT_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "MEDIAAGENT_PG_HEALTH_CHECK")

	setDuration(&cfg.Cache.CommandTTL, "MEDIAAGENT_COMMAND_TTL")
	setInt64(&cfg.Cache.MaxCostMB, "MEDIAAGENT_CACHE_MAX_COST_MB")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.SubjectPrefix, "MEDIAAGENT_NATS_SUBJECT_PREFIX")

	setString(&cfg.Logging.Backend, "MEDIAAGENT_LOG_BACKEND")
	setString(&cfg.Logging.Level, "MEDIAAGENT_LOG_LEVEL")
	setString(&cfg.Logging.Format, "MEDIAAGENT_LOG_FORMAT")

	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Telemetry.ServiceName, "OTEL_SERVICE_NAME")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	if cfg.Runner.MaxTurns < 1 {
		return errors.New("runner.max_turns must be >= 1")
	}

	if _, err := core.ParseAgentType(cfg.Runner.StartAgent); err != nil {
		return fmt.Errorf("runner.start_agent: %w", err)
	}

	if !providers[cfg.Model.Provider] {
		return fmt.Errorf("model.provider %q is not one of openai, anthropic, remote, mock", cfg.Model.Provider)
	}

	if cfg.Model.Provider == "remote" && cfg.Model.RemoteURL == "" {
		return errors.New("model.remote_url is required for the remote provider")
	}

	if cfg.Postgres.DSN != "" && cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}

	if cfg.Logging.Backend != "slog" && cfg.Logging.Backend != "zap" {
		return fmt.Errorf("logging.backend %q is not one of slog, zap", cfg.Logging.Backend)
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
