package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON in production, text when LOG_FORMAT=text.
func New(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if os.Getenv("LOG_FORMAT") == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
