// Package logging builds the process logger and carries correlation IDs
// through request contexts.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medical-scribe-server/internal/domain"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// New creates a logger writing to stdout. Invalid levels fall back to info.
func New(level, format string) *logrus.Logger {
	return NewWithOutput(level, format, os.Stdout)
}

// NewFromConfig creates a logger from the logging section of the config
func NewFromConfig(cfg domain.LoggingConfig) *logrus.Logger {
	return New(cfg.Level, cfg.Format)
}

// NewWithOutput creates a logger writing to out. The MCP server passes
// stderr since stdout carries the protocol.
func NewWithOutput(level, format string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if strings.ToLower(format) == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	return logger
}

// WithCorrelationID returns a context carrying id
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID extracts the correlation ID from ctx, or ""
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns an entry tagged with the context's correlation ID
func FromContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	entry := logrus.NewEntry(logger)
	if id := CorrelationID(ctx); id != "" {
		entry = entry.WithField("correlation_id", id)
	}
	return entry
}
