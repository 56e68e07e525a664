// Package logging builds the structured slog logger shared by all binaries.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with the service's default attributes. Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// Options selects level, output format and default attributes.
type Options struct {
	Level   string // debug, info, warn, error
	Format  string // json or text; empty picks json in production and text otherwise
	Env     string
	Service string
	Version string
	Output  io.Writer
}

// New creates a Logger. JSON is the default format in production; text elsewhere.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "text"
		if opts.Env == "production" {
			format = "json"
		}
	}

	hopts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(out, hopts)
	} else {
		handler = slog.NewTextHandler(out, hopts)
	}

	service := opts.Service
	if service == "" {
		service = "crm-auth"
	}
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", service),
		slog.String("version", opts.Version),
	})
	return &Logger{Logger: slog.New(handler)}
}

// parseLevel converts a level name to slog.Level. Unrecognised names mean info.
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

// With returns a Logger with additional default attributes.
//
//	sessLog := logger.With("component", "session")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is a JSON info logger for use before configuration is loaded.
func Default() *Logger {
	return New(Options{Level: "info", Format: "json", Version: "dev"})
}

// Discard returns a Logger that drops everything. Used in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
