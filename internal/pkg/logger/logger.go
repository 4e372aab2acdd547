// Package logger provides the structured logging sink for the parsing
// pipeline. The core emits named diagnostic events through this package; the
// host can replace the sink with Set or configure the default handler via
// the log.level and log.format config keys.
package logger

import (
	"log/slog"
	"sync"
)

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
	once          sync.Once
)

// Initialize sets up the default structured logger from configuration.
// Safe to call from multiple places; only the first call builds the handler.
func Initialize() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if defaultLogger == nil {
			defaultLogger = slog.New(newHandler())
		}
	})
}

// Get returns the current structured logger.
func Get() *slog.Logger {
	Initialize()
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Set injects a replacement logger. Hosts embedding the pipeline use this to
// route diagnostics into their own sink.
func Set(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// Debug logs a debug level message
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// Info logs an info level message
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Warn logs a warning level message
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs an error level message
func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

// With returns a logger with the given attributes
func With(args ...any) *slog.Logger {
	return Get().With(args...)
}
