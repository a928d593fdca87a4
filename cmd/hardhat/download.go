package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"hardhat-pipeline/cmd"
	"hardhat-pipeline/internal/stages"
	"hardhat-pipeline/internal/storage"

	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a pushed artifact from the object store",
	Long: `Downloads an artifact pushed by the model pusher. With --key the exact object
is fetched, otherwise the newest upload of --file under the configured prefix.`,
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		file, _ := c.Flags().GetString("file")
		key, _ := c.Flags().GetString("key")
		dest, _ := c.Flags().GetString("dest")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pushCfg := cfg.ModelPusher()
		if file == "" {
			file = pushCfg.WeightsPath
		}
		if dest == "" {
			dest = file
		}

		store, err := cmd.NewObjectStore(c.Context(), pushCfg, env)
		if err != nil {
			return err
		}
		bucket := stages.NewPusher(pushCfg, store, nil, slog.Default()).Bucket()

		if key == "" {
			obj, err := storage.DownloadLatest(c.Context(), store, bucket, pushCfg.KeyPrefix, filepath.Base(file), dest)
			if err != nil {
				return fmt.Errorf("failed to download latest %s: %w", filepath.Base(file), err)
			}
			key = obj.Name
		} else if err := storage.Download(c.Context(), store, bucket, key, dest); err != nil {
			return fmt.Errorf("failed to download %s: %w", key, err)
		}

		slog.Info("artifact downloaded", "bucket", bucket, "key", key, "dest", dest)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringP("file", "f", "", "Artifact file name to fetch (default the trained weights)")
	downloadCmd.Flags().StringP("key", "k", "", "Exact object key to fetch")
	downloadCmd.Flags().StringP("dest", "d", "", "Local destination (default the --file path)")
}
