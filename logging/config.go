package logging

import (
	"io"
	"log/slog"
	"os"
)

// Backends understood by New.
const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

// Config selects and configures a logging backend.
type Config struct {
	Backend   string    // slog (default) or zap
	Level     LogLevel
	Format    string    // json (default) or text
	Output    io.Writer // defaults to os.Stdout
	AddSource bool
}

// DefaultConfig returns a baseline JSON info level slog configuration.
func DefaultConfig() Config {
	return Config{Backend: BackendSlog, Level: LogLevelInfo, Format: "json", Output: os.Stdout}
}

// New builds a Logger for cfg.
func New(cfg Config) Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	if cfg.Backend == BackendZap {
		return NewZapLogger(cfg.Level, cfg.Format, cfg.Output, cfg.AddSource)
	}

	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	return NewSlogAdapter(slog.New(handler))
}
