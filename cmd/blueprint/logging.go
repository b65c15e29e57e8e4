package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/blueprint/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxLogSizeMB  = 6
	maxLogBackups = 3
)

// newLogger writes text logs to stderr, or to a rotated file when a path is
// configured. Stdout stays clean for command output and stdio MCP.
func newLogger(cfg config.LogConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	w := stderr
	var closer io.Closer
	if cfg.Path != "" {
		if err := ensureLogDir(cfg.Path); err != nil {
			return nil, nil, err
		}
		file := &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    maxLogSizeMB,
			MaxBackups: maxLogBackups,
		}
		w = file
		closer = file
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Level),
	}))
	return logger, closer, nil
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
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
