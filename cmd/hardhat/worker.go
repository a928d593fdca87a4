package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"hardhat-pipeline/internal/database"
	"hardhat-pipeline/internal/messaging"
	"hardhat-pipeline/internal/metrics"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Execute pipeline runs submitted over RabbitMQ",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		if env.RabbitMQURL == "" {
			return errors.New("RABBITMQ_URL must be set to run a worker")
		}

		ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

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

		receiver, err := messaging.NewRabbitMQReceiver(env.RabbitMQURL, env.QueueName)
		if err != nil {
			return fmt.Errorf("failed to create receiver: %w", err)
		}
		defer receiver.Close()

		return messaging.NewWorker(db, receiver, factory, slog.Default()).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
