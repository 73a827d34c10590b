package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/config"
)

func TestMavenHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMavenHandler(&buf, nil)).With("system", "worker")

	logger.Info("target processed", "target_amount", 10, "elapsed", 1500*time.Millisecond, "label", "two words")

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[INFO] [worker] ["), line)
	assert.Contains(t, line, " target processed target_amount=10 elapsed=1.5s label=\"two words\"\n")
	assert.NotContains(t, line, "system=")
	assert.NotContains(t, line, "\033[", "no colors for non-terminal writers")
}

func TestMavenHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMavenHandler(&buf, nil))

	logger.WithGroup("run").Info("done", "id", "abc", slog.Group("counts", "matched", 2))

	assert.Contains(t, buf.String(), " run.id=abc run.counts.matched=2")
}

func TestMavenHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMavenHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[WARN]")
}

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.Debug("calculation started", "targets", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "calculation started", entry["msg"])
	assert.Equal(t, float64(3), entry["targets"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
