package main

import (
	"log/slog"
	"os"

	"hardhat-pipeline/cmd"
	"hardhat-pipeline/internal/config"
	"hardhat-pipeline/internal/logging"

	"github.com/spf13/cobra"
)

// noLogFile marks commands that only log to the console.
const noLogFile = "no-log-file"

var env config.EnvConfig

var closeLog = func() error { return nil }

var rootCmd = &cobra.Command{
	Use:   "hardhat",
	Short: "Hard hat detection training pipeline and prediction service",
	Long: `Runs the hard hat detection pipeline (ingestion, validation, transformation,
training, evaluation and model push) and serves predictions over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		envFile, _ := c.Flags().GetString("env")
		if err := cmd.LoadEnvFile(envFile); err != nil {
			return err
		}

		loaded, err := config.LoadEnv()
		if err != nil {
			return err
		}
		if path, _ := c.Flags().GetString("config"); path != "" {
			loaded.ConfigPath = path
		}
		env = loaded

		opts := logging.Options{Level: env.LogLevel, Dir: env.LogDir, Console: os.Stderr}
		if _, ok := c.Annotations[noLogFile]; ok {
			opts.Dir = ""
		}
		logger, closeFn, err := logging.New(opts)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		closeLog = closeFn

		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		slog.Error("command failed", "error", err)
	}
	if cerr := closeLog(); cerr != nil {
		slog.Warn("failed to close log file", "error", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("env", "", "Path to a dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the pipeline configuration (overrides HARDHAT_CONFIG)")
}
