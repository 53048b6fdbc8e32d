// Package logger configures the process-wide slog.Logger from the
// environment.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	defaultLoggerMutex sync.Mutex
	defaultLogger      *slog.Logger
)

// Setup sets and returns the default logger. The level is read from
// LOG_LEVEL and the format, text or json, from LOG_FORMAT. Output is
// written to stderr.
func Setup() *slog.Logger {
	return SetupWriter(os.Stderr, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// SetupWriter is like Setup but writes to w with the given level and format.
func SetupWriter(w io.Writer, level, format string) *slog.Logger {
	options := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, options)
	} else {
		handler = slog.NewTextHandler(w, options)
	}
	logger := slog.New(handler)

	defaultLoggerMutex.Lock()
	defaultLogger = logger
	defaultLoggerMutex.Unlock()
	return logger
}

// L returns the default logger, calling Setup if needed.
func L() *slog.Logger {
	defaultLoggerMutex.Lock()
	logger := defaultLogger
	defaultLoggerMutex.Unlock()
	if logger == nil {
		return Setup()
	}
	return logger
}

// ParseLevel returns the slog.Level for s, defaulting to slog.LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
