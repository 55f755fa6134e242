package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvndrmann/mannmediaagency-sub000/logging"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Runner.MaxTurns)
	assert.Equal(t, "main", cfg.Runner.StartAgent)
	assert.Equal(t, int32(15), cfg.Postgres.MaxConns)
	assert.Equal(t, time.Hour, cfg.Cache.CommandTTL)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.NoError(t, validate(&cfg))
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  addr: ":9090"
runner:
  max_turns: 4
  start_agent: script
model:
  provider: mock
logging:
  level: debug
  backend: zap
telemetry:
  endpoint: "collector:4317"
`
	require.NoError(t, os.WriteFile(yamlPath, []byte(content), 0o644))

	cfg := Defaults()
	require.NoError(t, loadYAML(&cfg, yamlPath))

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Runner.MaxTurns)
	assert.Equal(t, "script", cfg.Runner.StartAgent)
	assert.Equal(t, "mock", cfg.Model.Provider)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)

	// Unchanged fields keep defaults.
	assert.Equal(t, 0.7, cfg.Model.Temperature)
	assert.Equal(t, "mediaagent", cfg.NATS.SubjectPrefix)

	lc := cfg.Logging.LoggerConfig()
	assert.Equal(t, logging.BackendZap, lc.Backend)
	assert.Equal(t, logging.LogLevelDebug, lc.Level)
}

func TestLoadYAMLMissingFile(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, loadYAML(&cfg, filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestLoadYAMLInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	cfg := Defaults()
	assert.Error(t, loadYAML(&cfg, path))
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runner:\n  max_turns: 4\n"), 0o644))

	t.Setenv("MEDIAAGENT_MAX_TURNS", "7")
	t.Setenv("DATABASE_URL", "postgres://localhost/media")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("MEDIAAGENT_COMMAND_TTL", "5m")
	t.Setenv("MEDIAAGENT_CONTINUE_WITH_LAST_AGENT", "true")
	t.Setenv("MEDIAAGENT_PG_MAX_CONNS", "not-a-number")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Runner.MaxTurns)
	assert.Equal(t, "postgres://localhost/media", cfg.Postgres.DSN)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.CommandTTL)
	assert.True(t, cfg.Runner.ContinueWithLastAgent)
	assert.Equal(t, int32(15), cfg.Postgres.MaxConns, "unparsable values are ignored")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"zero turns", func(c *Config) { c.Runner.MaxTurns = 0 }, "runner.max_turns"},
		{"unknown start agent", func(c *Config) { c.Runner.StartAgent = "director" }, "runner.start_agent"},
		{"unknown provider", func(c *Config) { c.Model.Provider = "gemini" }, "model.provider"},
		{"remote without url", func(c *Config) { c.Model.Provider = "remote" }, "model.remote_url"},
		{"pool size", func(c *Config) { c.Postgres.DSN = "postgres://x"; c.Postgres.MaxConns = 0 }, "postgres.max_conns"},
		{"log backend", func(c *Config) { c.Logging.Backend = "logrus" }, "logging.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)

			err := validate(&cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
