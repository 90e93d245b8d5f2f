package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"donortrack/internal/config"
)

func TestConsoleRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogConfig{Level: "warn"}, Options{Console: &buf})
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown", zap.Int64("event_id", 7))
	require.NoError(t, log.Sync())
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "event_id")
}

func TestFileSinkWritesJSON(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	log, err := New(config.LogConfig{Level: "info", File: "logs/donortrack.log", MaxSizeMB: 1}, Options{Console: &buf, Workspace: dir})
	require.NoError(t, err)
	log.Info("file line")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "logs", "donortrack.log"))
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "file line", entry["msg"])
	assert.Contains(t, entry, "timestamp")
	assert.Contains(t, buf.String(), "file line")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, l)
	l, err = ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, l)
	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}

func TestFileSinkRespectsLevel(t *testing.T) {
	dir := t.TempDir()
	log, err := New(config.LogConfig{Level: "warn", File: "donortrack.log"}, Options{Console: &bytes.Buffer{}, Workspace: dir})
	require.NoError(t, err)
	log.Info("routine")
	log.Warn("attention")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "donortrack.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "routine")
	assert.Contains(t, string(data), "attention")
}
