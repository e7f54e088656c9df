package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

func TestLogFilePath(t *testing.T) {
	tests := []struct {
		name    string
		logsDir string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "logs",
			want:    filepath.Join("logs", "globeview.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./logs",
			want:    filepath.Join(".", "logs", "globeview.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "globeview"),
			want:    filepath.Join("/var", "log", "globeview", "globeview.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, ServiceName, testTime))
		})
	}
}

func TestEventLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	el.Debug("handling event", "event", "camera.moveEnd", "payload", false)
	el.Info("queued", "event", "diagnostics.push")
	el.Error("event failed", "event", "input.click", "code", 500)

	dec := json.NewDecoder(&buf)
	var entries []map[string]any
	for dec.More() {
		var e map[string]any
		require.NoError(t, dec.Decode(&e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 3)

	assert.Equal(t, "debug", entries[0]["level"])
	assert.Equal(t, "camera.moveEnd", entries[0]["event"])
	assert.Equal(t, false, entries[0]["payload"])
	assert.Equal(t, "info", entries[1]["level"])
	assert.Equal(t, "error", entries[2]["level"])
	assert.Equal(t, float64(500), entries[2]["code"])
}

func TestEventLogger_IgnoresDanglingKey(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLogger(zerolog.New(&buf))

	el.Info("odd", "event", "x", "dangling")

	var e map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, "x", e["event"])
	assert.NotContains(t, e, "dangling")
}

func TestZerologLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, ZerologLevel("trace"))
	assert.Equal(t, zerolog.DebugLevel, ZerologLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ZerologLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, ZerologLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ZerologLevel("bogus"))
}

func TestNewZerolog_WritesPlainCopyToFile(t *testing.T) {
	var file bytes.Buffer
	logger := NewZerolog(&file, "info")

	logger.Debug().Msg("filtered")
	logger.Info().Str("store", "sqlite").Msg("database ready")

	out := file.String()
	assert.NotContains(t, out, "filtered")
	assert.Contains(t, out, "database ready")
	assert.Contains(t, out, "store=sqlite")
	assert.NotContains(t, out, "\x1b[", "file copy must not be colored")
}
