// Package logging configures structured logging for the sync engine using
// log/slog. Entries go to stderr and to a size-rotated engine log file, so a
// failed background sync leaves a trace even when nobody watched the console.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup builds the engine logger writing to stderr and to logFile.
//
// Level values: "debug", "info", "warn", "error" (default: "info").
func Setup(level, logFile string) *slog.Logger {
	var sink io.Writer = os.Stderr
	if logFile != "" {
		sink = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     90, // days
		})
	}

	handler := slog.NewTextHandler(sink, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
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
