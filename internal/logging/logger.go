// Package logging provides structured logging configuration using log/slog.
//
// Run-scoped attributes (run_id, entity) are carried in the context so
// every stage of a migration logs with the same correlation fields. The
// HTTP API additionally picks up chi's RequestID.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const (
	ctxKeyRunID  contextKey = "run_id"
	ctxKeyEntity contextKey = "entity"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// Use "json" format when run output is collected by a log pipeline.
// Use "text" format for interactive migrations.
func Setup(level, format string) {
	SetupWriter(os.Stderr, level, format)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRun stores the run identifier and entity key in ctx.
func WithRun(ctx context.Context, runID, entity string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyRunID, runID)
	return context.WithValue(ctx, ctxKeyEntity, entity)
}

// RunID returns the run identifier stored by WithRun, or "".
func RunID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRunID).(string); ok {
		return v
	}
	return ""
}

// FromContext returns a logger enriched with run and request context.
//
// Usage:
//
//	ctx = logging.WithRun(ctx, runID, "contacts")
//	logger := logging.FromContext(ctx)
//	logger.Info("chunk submitted", "size", n)
//	// ... run_id=... entity=contacts size=...
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if runID := RunID(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}
	if entity, ok := ctx.Value(ctxKeyEntity).(string); ok && entity != "" {
		logger = logger.With("entity", entity)
	}

	// Chi's RequestID middleware stores the ID in context
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
//
// Usage:
//
//	sfLogger := logging.WithFields(ctx, "object", "Invoice__c")
//	sfLogger.Debug("request sent", "records", len(batch))
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
