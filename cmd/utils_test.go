package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"hardhat-pipeline/internal/config"
	"hardhat-pipeline/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HARDHAT_TEST_VALUE=from-file\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("HARDHAT_TEST_VALUE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("HARDHAT_TEST_VALUE"))

	assert.NoError(t, LoadEnvFile(""))
	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestNewObjectStore(t *testing.T) {
	dir := t.TempDir()

	store, err := NewObjectStore(context.Background(), config.ModelPusher{Storage: config.StorageLocal, LocalStorageDir: dir}, config.EnvConfig{})
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalObjectStore{}, store)

	_, err = NewObjectStore(context.Background(), config.ModelPusher{Storage: "gcs"}, config.EnvConfig{})
	assert.ErrorContains(t, err, "unsupported storage backend")
}

func TestRemoveDirs(t *testing.T) {
	root := t.TempDir()
	artifacts := filepath.Join(root, "artifacts")
	logs := filepath.Join(root, "logs")
	require.NoError(t, os.MkdirAll(filepath.Join(artifacts, "model_trainer"), os.ModePerm))
	require.NoError(t, os.WriteFile(filepath.Join(artifacts, "model_trainer", "best.pt"), []byte("w"), 0644))

	removed, err := RemoveDirs(artifacts, logs, "")
	require.NoError(t, err)
	assert.Equal(t, []string{artifacts}, removed)
	assert.NoDirExists(t, artifacts)

	removed, err = RemoveDirs(artifacts)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
