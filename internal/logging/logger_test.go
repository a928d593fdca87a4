package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	logger, closeFn, err := New(Options{
		Level:   "info",
		Dir:     dir,
		Console: &console,
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)

	logger.Debug("debug detail", "stage", "validation")
	logger.Info("stage started", "stage", "validation")
	logger.With("run", "r1").Error("stage failed", "error", "boom")
	require.NoError(t, closeFn())

	assert.NotContains(t, console.String(), "debug detail")
	assert.Contains(t, console.String(), "stage started")
	assert.Contains(t, console.String(), "error=boom")
	assert.Contains(t, console.String(), "run=r1")

	data, err := os.ReadFile(filepath.Join(dir, "hardhat_20240309_140507.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug detail")
	assert.Contains(t, string(data), "stage started")
	assert.Contains(t, string(data), "run=r1")
	assert.Contains(t, string(data), "error=boom")
}

func TestNewWithoutDir(t *testing.T) {
	var console bytes.Buffer
	logger, closeFn, err := New(Options{Level: "warn", Console: &console})
	require.NoError(t, err)
	defer closeFn()

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
