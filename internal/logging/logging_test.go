package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "warn", "text")
	log.Info("hidden")
	log.Warn("shown", "path", "a.js")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "path=a.js")
}

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(&buf, "debug", "JSON").Debug("indexed", "files", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "indexed", rec["msg"])
	assert.Equal(t, float64(3), rec["files"])
}

func TestVerbosity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelInfo, Verbosity(slog.LevelInfo, 0, false))
	assert.Equal(t, slog.LevelDebug, Verbosity(slog.LevelInfo, 1, false))
	assert.Equal(t, slog.LevelError, Verbosity(slog.LevelDebug, 2, true))
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	assert.False(t, Discard().Enabled(t.Context(), slog.LevelError))
}

func TestNewAtBelowDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewAt(&buf, Verbosity(slog.LevelDebug, 1, false), "text")
	log.Log(t.Context(), slog.LevelDebug-4, "trace")
	assert.Contains(t, buf.String(), "msg=trace")
}
