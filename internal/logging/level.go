package logging

import (
	"context"
	"log/slog"
	"strings"
)

// LevelCritical sits above slog.LevelError. Cleanup passes that fail to free
// most of what they targeted are logged at this level.
const LevelCritical = slog.Level(12)

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "critical", "fatal":
		return LevelCritical
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= LevelCritical:
		return "CRITICAL"
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// Critical logs msg at LevelCritical.
func Critical(ctx context.Context, logger *slog.Logger, msg string, attrs ...Attr) {
	if logger == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger.LogAttrs(ctx, LevelCritical, msg, attrs...)
}
