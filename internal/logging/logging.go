// Package logging wires the bridge's structured logger: a slog.Logger over
// either stdout/stderr or a size-rotated file sink, configured the way the
// rest of the ambient stack is configured — through internal/config.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/wwhai/worksite-bridge/internal/config"
)

// New builds a slog.Logger from the bridge's log configuration.
func New(cfg config.Log) *slog.Logger {
	level := parseLevel(cfg.Level)

	writer := resolveWriter(cfg)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
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

// resolveWriter picks the log sink: stdout/stderr directly, or a
// lumberjack-rotated file when cfg.Output is "file". A file directory that
// cannot be created falls back to stdout rather than failing startup over
// a logging concern.
func resolveWriter(cfg config.Log) io.Writer {
	switch cfg.Output {
	case "stderr":
		return os.Stderr
	case "file":
		path := cfg.FilePath
		if path == "" {
			path = "logs/bridge.log"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return os.Stdout
		}
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	default:
		return os.Stdout
	}
}
