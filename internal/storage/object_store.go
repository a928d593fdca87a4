package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

type Object struct {
	Name string
	Size int64
}

type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)

	CreateBucket(ctx context.Context, bucket string) error

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	UploadFile(ctx context.Context, bucket, key, path string) error

	DownloadObject(ctx context.Context, bucket, key, filename string) error

	ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error)

	DeleteObjects(ctx context.Context, bucket, prefix string) error
}

// EnsureBucket creates bucket when it does not already exist.
func EnsureBucket(ctx context.Context, store ObjectStore, bucket string) error {
	exists, err := store.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		slog.Info("Bucket already exists", "bucket", bucket)
		return nil
	}
	return store.CreateBucket(ctx, bucket)
}

// Download retrieves bucket/key into filename.
func Download(ctx context.Context, store ObjectStore, bucket, key, filename string) error {
	exists, err := store.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s: %w", bucket, ErrNotFound)
	}
	return store.DownloadObject(ctx, bucket, key, filename)
}

// DownloadLatest retrieves the newest timestamped copy of file pushed under
// prefix and returns the object it chose.
func DownloadLatest(ctx context.Context, store ObjectStore, bucket, prefix, file, filename string) (Object, error) {
	exists, err := store.BucketExists(ctx, bucket)
	if err != nil {
		return Object{}, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		return Object{}, fmt.Errorf("bucket %s: %w", bucket, ErrNotFound)
	}

	objects, err := store.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return Object{}, fmt.Errorf("failed to list %s/%s: %w", bucket, prefix, err)
	}

	obj, err := Latest(objects, prefix, file)
	if err != nil {
		return Object{}, fmt.Errorf("no pushed copy of %s under %s/%s: %w", file, bucket, prefix, err)
	}

	if err := store.DownloadObject(ctx, bucket, obj.Name, filename); err != nil {
		return Object{}, err
	}
	return obj, nil
}

// Prune deletes all but the newest keep timestamped copies of file under
// prefix and returns the deleted keys. A keep below one deletes nothing.
func Prune(ctx context.Context, store ObjectStore, bucket, prefix, file string, keep int) ([]string, error) {
	if keep < 1 {
		return nil, nil
	}

	objects, err := store.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s/%s: %w", bucket, prefix, err)
	}

	versions := Versions(objects, prefix, file)
	if len(versions) <= keep {
		return nil, nil
	}

	var deleted []string
	for _, obj := range versions[keep:] {
		if err := store.DeleteObjects(ctx, bucket, obj.Name); err != nil {
			return deleted, fmt.Errorf("failed to prune %s/%s: %w", bucket, obj.Name, err)
		}
		deleted = append(deleted, obj.Name)
	}
	return deleted, nil
}
