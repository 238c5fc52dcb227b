// Package log configures structured logging for the binaries. Packages
// log through the default slog logger; the binaries pick the level and
// component here.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a text handler on the default slog logger with the
// component attached to every record, and returns it for direct use.
func Setup(component string, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With(FieldComponent, component)
	slog.SetDefault(logger)
	return logger
}

// LevelFromEnv reads LOG_LEVEL, defaulting to info.
func LevelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
