// Package observability builds the structured logger shared by the CLI and
// the pipeline.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/paveg/cltv/internal/config"
)

// NewLogger returns a slog logger writing to w, or to stderr when w is nil.
// Stdout is left for the prediction score.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel maps a configured level name to a slog level; unknown names
// are info
func ParseLevel(level string) slog.Level {
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

type contextKey string

// RunIDKey carries the pipeline run id
const RunIDKey contextKey = "run_id"

// WithRunID stores the run id in ctx
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID returns the run id stored by WithRunID, or ""
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}
