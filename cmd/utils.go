package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"hardhat-pipeline/internal/config"
	"hardhat-pipeline/internal/storage"

	"github.com/joho/godotenv"
)

// LoadEnvFile seeds the process environment from a dotenv file. An empty path
// leaves os.Environ untouched.
func LoadEnvFile(path string) error {
	if path == "" {
		slog.Debug("no env file specified, using os.Environ only")
		return nil
	}

	slog.Info("loading env from file", "path", path)
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading .env file '%s': %w", path, err)
	}
	return nil
}

// NewObjectStore returns the backend named by model_pusher.storage. S3
// endpoint and credentials come from the environment, falling back to the
// default AWS credential chain.
func NewObjectStore(ctx context.Context, cfg config.ModelPusher, env config.EnvConfig) (storage.ObjectStore, error) {
	switch cfg.Storage {
	case config.StorageLocal:
		return storage.NewLocalObjectStore(cfg.LocalStorageDir)
	case config.StorageS3, "":
		return storage.NewS3ObjectStore(ctx, storage.S3ClientConfig{
			Endpoint:        env.S3EndpointURL,
			Region:          cfg.Region,
			AccessKeyID:     env.S3AccessKeyID,
			SecretAccessKey: env.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend '%s'", cfg.Storage)
	}
}

// RemoveDirs deletes each directory with its contents. Directories that do not
// exist are skipped. It returns the directories actually removed.
func RemoveDirs(dirs ...string) ([]string, error) {
	var removed []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Info("directory does not exist, skipping", "dir", dir)
				continue
			}
			return removed, fmt.Errorf("failed to stat %s: %w", dir, err)
		}
		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", dir, err)
		}
		slog.Info("directory deleted", "dir", dir)
		removed = append(removed, dir)
	}
	return removed, nil
}
