// Package logger provides structured logging configuration for the StudySphere services.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	// FormatJSON outputs logs in JSON format (production default)
	FormatJSON LogFormat = "json"
	// FormatText outputs logs in human-readable text format (development default)
	FormatText LogFormat = "text"
)

// Options controls how a logger is built.
type Options struct {
	Level   slog.Level
	Format  LogFormat
	Service string
	Output  io.Writer
}

// New creates a new structured logger based on environment configuration.
// It reads LOG_LEVEL and LOG_FORMAT from environment variables.
//
// LOG_LEVEL options: debug, info, warn, error (default: info)
// LOG_FORMAT options: json, text (default: json)
func New(service string) *slog.Logger {
	return NewWithOptions(Options{
		Level:   ParseLevel(os.Getenv("LOG_LEVEL")),
		Format:  ParseFormat(os.Getenv("LOG_FORMAT")),
		Service: service,
		Output:  os.Stdout,
	})
}

// NewWithOptions builds a logger from explicit options. A nil Output discards logs.
func NewWithOptions(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.Level <= slog.LevelDebug,
	}

	var handler slog.Handler
	switch opts.Format {
	case FormatText:
		handler = slog.NewTextHandler(out, handlerOpts)
	default:
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	l := slog.New(handler)
	if opts.Service != "" {
		l = l.With("service", opts.Service)
	}
	return l
}

// ParseLevel maps a LOG_LEVEL value to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// ParseFormat maps a LOG_FORMAT value to a LogFormat, defaulting to JSON.
func ParseFormat(s string) LogFormat {
	if strings.ToLower(strings.TrimSpace(s)) == "text" {
		return FormatText
	}
	return FormatJSON
}

// Discard returns a logger that drops everything. Used by tests and the CLI.
func Discard() *slog.Logger {
	return NewWithOptions(Options{})
}

// SetDefault sets the given logger as the default slog logger
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
