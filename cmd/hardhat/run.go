package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"hardhat-pipeline/internal/database"
	"hardhat-pipeline/internal/messaging"
	"hardhat-pipeline/internal/metrics"
	"hardhat-pipeline/internal/stages"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the training pipeline",
	Long: `Runs the pipeline stages in order, stopping at the first failure.
Without --stage every stage runs.`,
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		names, _ := c.Flags().GetStringSlice("stage")

		ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		selected, err := stages.Select(names)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := database.Open(env.DatabaseURL)
		if err != nil {
			return err
		}

		factory, err := pipelineFactory(ctx, cfg, metrics.NewNop())
		if err != nil {
			return err
		}

		run, err := database.CreateRun(ctx, db, selected, database.OriginCLI)
		if err != nil {
			return err
		}

		worker := messaging.NewWorker(db, nil, factory, slog.Default())
		if err := worker.RunPipeline(ctx, messaging.PipelineRunPayload{RunId: run.Id, Stages: selected}); err != nil {
			return fmt.Errorf("pipeline run %s failed: %w", run.Id, err)
		}

		slog.Info("pipeline run completed", "run_id", run.Id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSliceP("stage", "s", nil, "Stage to run, may be repeated (default all stages)")
}
