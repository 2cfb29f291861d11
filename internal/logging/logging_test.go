package logging

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   Level
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "level %q", tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestWithTableAddsAttribute(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelDebug)

	WithTable("users").Info("rollover", "page", 2)

	out := buf.String()
	assert.Contains(t, out, "table=users")
	assert.Contains(t, out, "page=2")
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "csvdb.log")
	require.NoError(t, Init(Config{Level: LevelInfo, Format: "json", OutputPath: path}))
	defer Close()

	WithComponent("catalog").Info("schema created")
	require.NoError(t, Close())

	assert.FileExists(t, path)
}
