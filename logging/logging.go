// Package logging provides the process-wide structured logger, adapted from
// pkg/logger: a log/slog logger configured once at startup and a
// request-scoped helper that attaches a correlation id to every record a
// request handler emits.
package logging

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

type correlationIDKey struct{}

// Config selects the logger's verbosity and encoding.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // json, text
}

var (
	once   sync.Once
	global *slog.Logger
)

// Init configures the global logger. Safe to call multiple times; only the
// first call takes effect, matching pkg/logger's singleton behavior.
func Init(cfg Config) {
	once.Do(func() {
		global = newLogger(cfg)
		slog.SetDefault(global)
	})
}

func newLogger(cfg Config) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// Get returns the global logger, initializing it with defaults if Init was
// never called.
func Get() *slog.Logger {
	if global == nil {
		Init(Config{Level: "INFO", Format: "json"})
	}
	return global
}

// WithCorrelationID returns a context carrying id, and FromContext retrieves
// it so request handlers can thread one request id through every log line
// they emit without passing a *slog.Logger explicitly.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// FromContext returns a logger annotated with ctx's correlation id, falling
// back to the bare global logger if none was set.
func FromContext(ctx context.Context) *slog.Logger {
	id, ok := ctx.Value(correlationIDKey{}).(string)
	if !ok || id == "" {
		return Get()
	}
	return Get().With("correlation_id", id)
}
