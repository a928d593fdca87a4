package main

import (
	"fmt"
	"log/slog"

	"hardhat-pipeline/cmd"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:         "clean",
	Short:       "Remove pipeline artifacts and logs",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{noLogFile: ""},
	RunE: func(c *cobra.Command, args []string) error {
		artifacts, _ := c.Flags().GetString("artifacts")
		if !c.Flags().Changed("artifacts") {
			if cfg, err := loadConfig(); err == nil {
				artifacts = cfg.ArtifactsRoot()
			} else {
				slog.Warn("using default artifacts directory", "dir", artifacts, "error", err)
			}
		}

		removed, err := cmd.RemoveDirs(artifacts, env.LogDir)
		for _, dir := range removed {
			fmt.Fprintf(c.OutOrStdout(), "Removed directory: %s\n", dir)
		}
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			fmt.Fprintln(c.OutOrStdout(), "Nothing to clean")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().String("artifacts", "artifacts", "Artifacts directory to remove (default from config)")
}
