package integrationtests

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hardhat-pipeline/internal/config"
	"hardhat-pipeline/internal/logging"
	"hardhat-pipeline/internal/stages"
	"hardhat-pipeline/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucketName = "test-models"

func setupTestObjectStore(t *testing.T, ctx context.Context) *storage.S3ObjectStore {
	t.Helper()

	endpoint := setupMinioContainer(t, ctx)

	store, err := storage.NewS3ObjectStore(ctx, storage.S3ClientConfig{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		AccessKeyID:     minioUsername,
		SecretAccessKey: minioPassword,
	})
	require.NoError(t, err)
	return store
}

func TestS3ObjectStore(t *testing.T) {
	skipShort(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	store := setupTestObjectStore(t, ctx)

	exists, err := store.BucketExists(ctx, bucketName)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, storage.EnsureBucket(ctx, store, bucketName))
	require.NoError(t, storage.EnsureBucket(ctx, store, bucketName))

	require.NoError(t, store.PutObject(ctx, bucketName, "a/one.txt", bytes.NewReader([]byte("one"))))
	require.NoError(t, store.PutObject(ctx, bucketName, "a/two.txt", bytes.NewReader([]byte("two"))))
	require.NoError(t, store.PutObject(ctx, bucketName, "b/three.txt", bytes.NewReader([]byte("three"))))

	objects, err := store.ListObjects(ctx, bucketName, "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []storage.Object{{Name: "a/one.txt", Size: 3}, {Name: "a/two.txt", Size: 3}}, objects)

	dest := filepath.Join(t.TempDir(), "nested", "three.txt")
	require.NoError(t, storage.Download(ctx, store, bucketName, "b/three.txt", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "three", string(data))

	require.NoError(t, store.DeleteObjects(ctx, bucketName, "a"))
	objects, err = store.ListObjects(ctx, bucketName, "a")
	require.NoError(t, err)
	assert.Empty(t, objects)

	err = storage.Download(ctx, store, "missing-bucket", "b/three.txt", dest)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPushAndDownloadLatest(t *testing.T) {
	skipShort(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	store := setupTestObjectStore(t, ctx)

	dir := t.TempDir()
	weights := filepath.Join(dir, "best.pt")
	descriptor := filepath.Join(dir, "dataset.yaml")
	require.NoError(t, os.WriteFile(descriptor, []byte("nc: 2\nnames: ['head', 'helmet']\n"), 0644))

	cfg := config.ModelPusher{
		Storage:         config.StorageS3,
		BucketName:      bucketName,
		KeyPrefix:       "hardhat",
		WeightsPath:     weights,
		DatasetYAMLPath: descriptor,
	}

	for i, content := range []string{"first weights", "second weights"} {
		require.NoError(t, os.WriteFile(weights, []byte(content), 0644))

		now := func() time.Time { return time.Date(2024, 6, 1, 12, i, 0, 0, time.UTC) }
		keys, err := stages.NewPusher(cfg, store, now, logging.NewNop()).Push(ctx)
		require.NoError(t, err)
		require.Len(t, keys, 2)
	}

	objects, err := store.ListObjects(ctx, bucketName, "hardhat")
	require.NoError(t, err)
	assert.Len(t, objects, 4)

	dest := filepath.Join(t.TempDir(), "best.pt")
	obj, err := storage.DownloadLatest(ctx, store, bucketName, "hardhat", "best.pt", dest)
	require.NoError(t, err)
	assert.Equal(t, storage.TimestampKey("hardhat", "best.pt", time.Date(2024, 6, 1, 12, 1, 0, 0, time.UTC)), obj.Name)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "second weights", string(data))
}
