package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Level comes from LOG_LEVEL (debug, info,
// warn, error); anything unrecognized falls back to info.
func New() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
