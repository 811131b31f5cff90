package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"brand-relay/internal/config"
)

// Init installs a JSON slog handler as the default logger. Output goes to
// stdout, and additionally to a rotating file when cfg.File is set.
func Init(cfg config.LogConfig) {
	slog.SetDefault(slog.New(NewHandler(cfg)))
	slog.Debug("logger initialized", "level", cfg.Level, "file", cfg.File)
}

func NewHandler(cfg config.LogConfig) slog.Handler {
	writers := []io.Writer{os.Stdout}
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			LocalTime:  true,
		})
	}
	return slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
