// Package logging provides a process-wide structured logger for minisql.
//
// The package wraps [log/slog] and exposes a single logger instance that
// is initialized once at process start and then retrieved via Get.
// Subsystems obtain a logger through this package rather than
// constructing their own slog.Logger, so output format and level are
// controlled from a single place.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	logger *slog.Logger
)

// Init configures the process-wide logger. level is one of "debug",
// "info", "warn", "error" (case-insensitive); unrecognized values fall
// back to "info". "debug" selects a human-readable text handler; every
// other level selects JSON, matching the teacher's production/dev split.
func Init(level string) {
	var lvl slog.Level
	handlerOpts := &slog.HandlerOptions{}
	var handler slog.Handler
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
		handlerOpts.Level = lvl
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	case "warn":
		lvl = slog.LevelWarn
		handlerOpts.Level = lvl
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	case "error":
		lvl = slog.LevelError
		handlerOpts.Level = lvl
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		lvl = slog.LevelInfo
		handlerOpts.Level = lvl
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	}

	mu.Lock()
	logger = slog.New(handler)
	mu.Unlock()
}

// Get returns the process-wide logger, lazily defaulting to an INFO-level
// JSON logger on stderr if Init was never called.
func Get() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init("info")
	return Get()
}

// WithSession returns a child logger tagged with a façade session ID.
func WithSession(sessionID string) *slog.Logger {
	return Get().With("session", sessionID)
}

// WithComponent returns a child logger tagged with a subsystem name.
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}
