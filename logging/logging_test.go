package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, "warn")

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))

	slog.New(h).Warn("page failed", "page", 3)
	assert.Contains(t, buf.String(), "page failed")
	assert.Contains(t, buf.String(), "page=3")
}

func TestSetupWritesPlainFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "scraper.log")
	rw, err := Setup(path, "info")
	require.NoError(t, err)

	slog.Warn("page failed", "page", 3)
	slog.Debug("hidden")
	require.NoError(t, rw.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "page failed")
	assert.Contains(t, string(data), "page=3")
	assert.NotContains(t, string(data), "hidden")
	assert.NotContains(t, string(data), "\x1b[", "no colour codes in the file")
}

func TestRotatingWriterRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)

	w := &RotatingWriter{file: f, path: path, maxSize: 10}
	_, err = w.Write([]byte("0123456789abc"))
	require.NoError(t, err)
	_, err = w.Write([]byte("next"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	backup, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abc", string(backup))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "next", string(current))
}
