package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across snpm.
const (
	// Identity and context
	FieldRunID     = "run_id"
	FieldClientID  = "client_id"
	FieldComponent = "component"

	// Publish
	FieldStage   = "stage"
	FieldOwner   = "owner"
	FieldRepo    = "repo"
	FieldVersion = "version"
	FieldURL     = "url"
	FieldDir     = "dir"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Network
	FieldAddress = "address"
	FieldPort    = "port"
	FieldStatus  = "status"
)

type contextKey string

const runIDKey contextKey = "logger_run_id"

// WithRunID adds a pipeline run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run ID stored by WithRunID, or ""
func RunIDFromContext(ctx context.Context) string {
	runID, _ := ctx.Value(runIDKey).(string)
	return runID
}

// LoggerFromContext returns a logger carrying the context's run ID, if any.
func LoggerFromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		return base.With(FieldRunID, runID)
	}
	return base
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
