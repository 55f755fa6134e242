// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the runner, registry, handlers and tools use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZapAdapter wrapping a zap SugaredLogger
//   - StructuredLogger adding run/component context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.New(logging.Config{Backend: logging.BackendZap, Level: logging.LogLevelDebug})
//	r := runner.New(reg, func(o *runner.Options) { o.Logger = logger })
//
// Messages are dotted event names ("runner.turn.start", "tool.call.failed")
// followed by key/value pairs.
package logging
