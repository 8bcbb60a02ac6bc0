package infra

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{}
	cfg.App.Name = "dca-ladder"
	cfg.App.Version = "1.2.3"
	cfg.Logging.Dir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Level = "warn"

	var stdout bytes.Buffer
	logger := newLogger(cfg, &stdout)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("pair", "BTC/USDT"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "dca-ladder", rec["app"])
	assert.Equal(t, "1.2.3", rec["version"])
	assert.Equal(t, "BTC/USDT", rec["pair"])

	file, err := os.ReadFile(filepath.Join(cfg.Logging.Dir, LogFile))
	require.NoError(t, err)
	assert.Equal(t, stdout.String(), string(file))
}
