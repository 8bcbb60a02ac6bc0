package infra

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFile is the name of the rotated log file inside logging.dir.
const LogFile = "app.log"

// NewLogger creates a JSON slog.Logger writing to stdout and a rotated file in
// logging.dir. Every record carries the app name and version when they are set.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg *Config, stdout io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Logging.Level),
	}

	logDir := cfg.Logging.Dir
	if logDir == "" {
		logDir = "logs"
	}

	var writer io.Writer = stdout
	if err := os.MkdirAll(logDir, 0755); err == nil {
		writer = io.MultiWriter(stdout, &lumberjack.Logger{
			Filename:   filepath.Join(logDir, LogFile),
			MaxSize:    10, // Megabytes
			MaxBackups: 3,
			MaxAge:     28, // Days
			Compress:   true,
		})
	}
	// Without a log directory the bot still logs to stdout

	logger := slog.New(slog.NewJSONHandler(writer, opts))
	if cfg.App.Name != "" {
		logger = logger.With(slog.String("app", cfg.App.Name))
	}
	if cfg.App.Version != "" {
		logger = logger.With(slog.String("version", cfg.App.Version))
	}
	return logger
}

// ParseLevel maps a config string onto a slog level. Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
