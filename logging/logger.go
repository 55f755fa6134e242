// Package logging provides a tiny abstraction over slog and zap so downstream
// code can depend on a minimal interface (Logger) while allowing users to plug
// any structured logger. It also offers a StructuredLogger with contextual
// helpers (run, group, component) and domain specific logging helpers for
// handoffs, tools and completion calls.
package logging

import (
	"log/slog"
	"maps"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled
// from the concrete backend.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps debug|info|warn|error (any case) to a LogLevel. Unknown
// values fall back to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface used across the module.
// Arguments after msg are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StructuredLogger decorates any Logger with contextual attributes and domain
// convenience methods. It is cheap to copy via the With* methods.
type StructuredLogger struct {
	base      Logger
	component string
	runID     string
	groupID   string
	attrs     map[string]any
}

// NewStructuredLogger wraps base; a nil base discards everything.
func NewStructuredLogger(base Logger) *StructuredLogger {
	if base == nil {
		base = NoOpLogger{}
	}

	return &StructuredLogger{base: base, attrs: map[string]any{}}
}

func (l *StructuredLogger) clone() *StructuredLogger {
	nl := *l
	nl.attrs = maps.Clone(l.attrs)

	return &nl
}

// WithContext adds a key/value attribute attached to every entry.
func (l *StructuredLogger) WithContext(key string, value any) *StructuredLogger {
	nl := l.clone()
	nl.attrs[key] = value

	return nl
}

// WithComponent sets the logical component (runner, registry, agent.script, ...).
func (l *StructuredLogger) WithComponent(c string) *StructuredLogger {
	nl := l.clone()
	nl.component = c

	return nl
}

// WithRun attaches run and group identifiers.
func (l *StructuredLogger) WithRun(runID, groupID string) *StructuredLogger {
	nl := l.clone()
	nl.runID = runID
	nl.groupID = groupID

	return nl
}

func (l *StructuredLogger) kv(args []any) []any {
	out := make([]any, 0, len(args)+2*len(l.attrs)+6)
	if l.component != "" {
		out = append(out, "component", l.component)
	}

	if l.runID != "" {
		out = append(out, "run_id", l.runID)
	}

	if l.groupID != "" {
		out = append(out, "group_id", l.groupID)
	}

	for k, v := range l.attrs {
		out = append(out, k, v)
	}

	return append(out, args...)
}

// Debug logs at debug level.
func (l *StructuredLogger) Debug(msg string, args ...any) { l.base.Debug(msg, l.kv(args)...) }

// Info logs at info level.
func (l *StructuredLogger) Info(msg string, args ...any) { l.base.Info(msg, l.kv(args)...) }

// Warn logs at warn level.
func (l *StructuredLogger) Warn(msg string, args ...any) { l.base.Warn(msg, l.kv(args)...) }

// Error logs at error level.
func (l *StructuredLogger) Error(msg string, args ...any) { l.base.Error(msg, l.kv(args)...) }

// LogHandoff records one delegation transition.
func (l *StructuredLogger) LogHandoff(from, to, reason string, turn int) {
	l.Info("runner.handoff", "from_agent", from, "to_agent", to, "reason", reason, "turn", turn)
}

// LogToolCall records execution details for a tool invocation.
func (l *StructuredLogger) LogToolCall(tool string, dur time.Duration, success bool, err error) {
	args := []any{"tool_name", tool, "duration", dur, "success", success}
	if err != nil {
		l.Error("tool.call.failed", append(args, "error", err.Error())...)
		return
	}

	if !success {
		l.Warn("tool.call.failed", args...)
		return
	}

	l.Info("tool.call.completed", args...)
}

// LogLLMCall records completion call latency, token usage and success.
func (l *StructuredLogger) LogLLMCall(model string, tokens int, dur time.Duration, err error) {
	args := []any{"model", model, "token_count", tokens, "duration", dur}
	if err != nil {
		l.Error("model.call.failed", append(args, "error", err.Error())...)
		return
	}

	l.Info("model.call.completed", args...)
}

// StartTimer returns a closure that logs the elapsed duration when invoked.
func (l *StructuredLogger) StartTimer(op string) func() {
	start := time.Now()
	return func() { l.Debug("operation.completed", "operation", op, "duration", time.Since(start)) }
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
