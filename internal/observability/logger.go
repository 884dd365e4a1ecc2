package observability

import (
	"log/slog"
	"os"
)

// basic global logger, JSON to stderr (stdout is reserved for command output).
var logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))

func Logger() *slog.Logger {
	return logger
}

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return logger.With(kv...)
}
