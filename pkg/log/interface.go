// Package log provides the structured logging used across cvtune.
//
// The Logger interface is a small, slog-compatible surface. The default
// implementation writes JSON through log/slog (see SetupLogger); warnings
// raised by pkg/errors are routed to zerolog (see SetupWarnings).
//
//	logger := log.GetLoggerWithName("pipeline.crossval").With(
//	    log.ModelIDKey, "RF",
//	)
//	logger.Info("fold done", log.FoldKey, 3, log.ProgressKey, 40.0)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with log/slog.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)

	// Error logs at error level. If the first field is an error it is
	// attached under ErrAttrKey so its stacktrace is emitted.
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
