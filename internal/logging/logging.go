package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/deidaraiorek/siteindex/internal/config"
)

// Setup builds the JSON logger writing to stdout and to a rotated log file,
// installs it as the default logger and returns it together with a closer
// for the file. An empty cfg.File logs to stdout only.
func Setup(cfg config.LoggingConfig, verbose bool) (*slog.Logger, io.Closer) {
	level := ParseLevel(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		logDir := filepath.Dir(cfg.File)
		if err := os.MkdirAll(logDir, 0750); err != nil {
			slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error(
				"Failed to create log directory", "path", logDir, "error", err,
			)
		}

		logRotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(os.Stdout, logRotator)
		closer = logRotator
	}

	logger := New(out, level)
	slog.SetDefault(logger)
	return logger, closer
}

func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}).WithAttrs([]slog.Attr{slog.String("service", "siteindex")})
	return slog.New(handler)
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
