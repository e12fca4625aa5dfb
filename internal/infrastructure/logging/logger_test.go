package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.name))
		})
	}
}

func TestConsoleHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "info"}).With("system", "pipeline")

	logger.Info("Run completed", "run_id", "abc", "accepted", 3)

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[INFO] [pipeline] ["), line)
	assert.Contains(t, line, " Run completed run_id=abc accepted=3\n")
	assert.NotContains(t, line, "system=", "system is shown in brackets only")
	assert.NotContains(t, line, "\033[", "buffers never get colors")
}

func TestConsoleHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "warn"})

	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[WARN]")
}

func TestConsoleHandler_GroupsAndQuoting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "debug"})

	logger.WithGroup("limits").With("max_docs", 10).Debug("Filtered",
		slog.Group("pool", "docs", 2),
		"reason", "no tenant",
		"took", 1500*time.Millisecond,
	)

	line := buf.String()
	assert.Contains(t, line, "[DEBUG]")
	assert.Contains(t, line, "limits.max_docs=10")
	assert.Contains(t, line, "limits.pool.docs=2")
	assert.Contains(t, line, `limits.reason="no tenant"`)
	assert.Contains(t, line, "limits.took=1.5s")
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "info", Format: "json"})

	logger.Info("Run completed", "accepted", 2)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Run completed", record["msg"])
	assert.Equal(t, float64(2), record["accepted"])
}

func TestDiscard(t *testing.T) {
	logger := Discard()

	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}
