package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/phsym/console-slog"
	"github.com/spf13/viper"
)

// newHandler builds the default slog handler from the log.level and
// log.format config keys. Diagnostics go to stderr; stdout carries data.
func newHandler() slog.Handler {
	level := parseLevel(viper.GetString("log.level"))

	switch strings.ToLower(viper.GetString("log.format")) {
	case "json":
		return slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	default:
		return console.NewHandler(os.Stderr, &console.HandlerOptions{
			Level: level,
		})
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
