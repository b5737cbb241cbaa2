// Package logger configures the process-wide slog default.
package logger

import (
	"log/slog"
	"os"
	"path/filepath"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log destination and verbosity.
type Config struct {
	DataDir string
	DevMode bool
}

// Init sets the default slog logger. In dev mode logs go to stderr as text at
// debug level; otherwise they are written as JSON to a rotating file under
// <DataDir>/logs.
func Init(cfg Config) {
	if cfg.DevMode {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		slog.SetDefault(slog.New(handler))
		return
	}

	logDir := filepath.Join(cfg.DataDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		// Fall back to stderr rather than dropping logs entirely.
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
		slog.Error("failed to create log directory", "dir", logDir, "error", err)
		return
	}

	fileLogger := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "server.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	handler := slog.NewJSONHandler(fileLogger, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// Truncate shortens s for logging, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
