// Package monitoring provides structured logging via zerolog.
//
// DESIGN: Thin wrapper around zerolog with:
//   - Configurable level, format (json/console), output (stdout/file)
//   - Global() sets the default logger for the entire application
//   - Request ID context helpers for request tracing
package monitoring

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Context keys for request tracking.
type contextKey string

const RequestIDKey contextKey = "request_id"

// LoggerConfig configures the logger. Mirrors config.MonitoringConfig
// without importing it, so monitoring stays dependency-free.
type LoggerConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// New builds a zerolog logger with the given configuration.
func New(cfg LoggerConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writer io.Writer
	switch cfg.Output {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			writer = os.Stdout
		} else {
			writer = f
		}
	}

	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// Global installs the configured logger as the process-wide default.
func Global(cfg LoggerConfig) {
	log.Logger = New(cfg)
}

// RequestIDFromContext retrieves the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestIDContext returns a new context with the request ID.
func WithRequestIDContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}
