package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/doorlink/intercom-core/internal/infrastructure/config"
)

// Logger is slog with the daemon's defaults baked in: every record
// carries service and version attributes, and child loggers are derived
// with With. Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a logger from the logging section of config.yaml. Format
// "text" is meant for a terminal during development; anything else gets
// JSON. Output "stderr" redirects; anything else is stdout.
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(cfg).WithAttrs([]slog.Attr{
		slog.String("service", "intercomd"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

// Default is the bootstrap logger used before config.yaml has been
// loaded: JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

// With derives a child logger carrying extra default attributes, the
// usual way components tag their records:
//
//	log := logger.With("component", "events.recorder")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func newHandler(cfg config.LoggingConfig) slog.Handler {
	var out io.Writer = os.Stdout
	if strings.ToLower(cfg.Output) == "stderr" {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}

// parseLevel maps a config level string onto slog's levels, defaulting
// to info for anything unrecognised.
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
