package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapAdapter wraps a *zap.SugaredLogger to implement the Logger interface.
type ZapAdapter struct {
	*zap.SugaredLogger
}

// Debug logs a debug message.
func (z *ZapAdapter) Debug(msg string, args ...any) { z.Debugw(msg, args...) }

// Info logs an informational message.
func (z *ZapAdapter) Info(msg string, args ...any) { z.Infow(msg, args...) }

// Warn logs a warning message.
func (z *ZapAdapter) Warn(msg string, args ...any) { z.Warnw(msg, args...) }

// Error logs an error message.
func (z *ZapAdapter) Error(msg string, args ...any) { z.Errorw(msg, args...) }

// NewZapAdapter creates a Logger from *zap.SugaredLogger.
func NewZapAdapter(l *zap.SugaredLogger) Logger {
	return &ZapAdapter{SugaredLogger: l}
}

var zapEncoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.StringDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

func zapLevel(l LogLevel) zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewZapLogger builds a zap-backed Logger writing to w in json or console format.
func NewZapLogger(level LogLevel, format string, w io.Writer, addSource bool) Logger {
	var enc zapcore.Encoder
	if format == "text" {
		enc = zapcore.NewConsoleEncoder(zapEncoderConfig)
	} else {
		enc = zapcore.NewJSONEncoder(zapEncoderConfig)
	}

	opts := []zap.Option{}
	if addSource {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(zapLevel(level)))

	return NewZapAdapter(zap.New(core, opts...).Sugar())
}
