// Package logger builds the application's slog root logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogsentry "github.com/samber/slog-sentry/v2"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/orderdesk/orderdesk-bot/pkg/config"
)

// New constructs a slog.Logger according to cfg: level and format from the
// logger section, optional file rotation, sensitive-attribute masking, and a
// Sentry fanout when enabled.
func New(cfg config.Config) *slog.Logger {
	level := parseLevel(cfg.Logger.Level)

	var out io.Writer = os.Stdout
	if cfg.Logger.FilePath != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Logger.FilePath,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Logger.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	handler = NewMaskingHandler(handler)

	if cfg.Sentry.Enabled {
		handler = fanoutHandler{
			handlers: []slog.Handler{
				handler,
				slogsentry.Option{Level: slog.LevelError}.NewSentryHandler(),
			},
		}
	}

	log := slog.New(handler).With(slog.String("env", cfg.AppEnv))
	slog.SetDefault(log)

	return log
}

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
