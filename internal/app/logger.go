package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger returns a configured slog.Logger based on configuration. When
// LOG_FILE is set, output is also written to a size-rotated file.
func NewLogger(cfg *Config) *slog.Logger {
	var out io.Writer = os.Stdout
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil {
		opts.Level = parseLevel(cfg.LogLevel)
		if cfg.LogFile != "" {
			out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    cfg.LogFileMaxMB,
				MaxAge:     cfg.LogFileMaxAge,
				MaxBackups: 5,
				Compress:   true,
			})
		}
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
