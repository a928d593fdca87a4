package stages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hardhat-pipeline/internal/config"
	"hardhat-pipeline/internal/process"
	"hardhat-pipeline/internal/storage"
)

const defaultBucket = "hardhat-models"

type Pusher struct {
	cfg    config.ModelPusher
	store  storage.ObjectStore
	now    func() time.Time
	logger *slog.Logger
}

func NewPusher(cfg config.ModelPusher, store storage.ObjectStore, now func() time.Time, logger *slog.Logger) *Pusher {
	if now == nil {
		now = time.Now
	}
	return &Pusher{cfg: cfg, store: store, now: now, logger: logger}
}

func (s *Pusher) Name() string { return ModelPusher }

func (s *Pusher) Bucket() string {
	if s.cfg.BucketName == "" {
		return defaultBucket
	}
	return s.cfg.BucketName
}

func (s *Pusher) Run(ctx context.Context) error {
	_, err := s.Push(ctx)
	return err
}

// Push uploads the trained weights and the dataset description under
// timestamped keys and returns the keys in upload order.
func (s *Pusher) Push(ctx context.Context) ([]string, error) {
	files := []string{s.cfg.WeightsPath, s.cfg.DatasetYAMLPath}
	for _, f := range files {
		if err := process.RequireFile(f); err != nil {
			return nil, err
		}
	}

	bucket := s.Bucket()
	if err := storage.EnsureBucket(ctx, s.store, bucket); err != nil {
		return nil, err
	}

	ts := s.now()
	keys := make([]string, 0, len(files))
	for _, f := range files {
		key := storage.TimestampKey(s.cfg.KeyPrefix, f, ts)
		if err := s.store.UploadFile(ctx, bucket, key, f); err != nil {
			return keys, fmt.Errorf("failed to push %s: %w", f, err)
		}
		s.logger.Info("artifact pushed", "file", f, "bucket", bucket, "key", key)
		keys = append(keys, key)
	}

	for _, f := range files {
		pruned, err := storage.Prune(ctx, s.store, bucket, s.cfg.KeyPrefix, f, s.cfg.KeepVersions)
		if err != nil {
			return keys, err
		}
		if len(pruned) > 0 {
			s.logger.Info("old artifacts pruned", "file", f, "bucket", bucket, "keys", pruned)
		}
	}
	return keys, nil
}
