package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hardhat-pipeline/internal/api"
	"hardhat-pipeline/internal/database"
	"hardhat-pipeline/internal/messaging"
	"hardhat-pipeline/internal/metrics"
	"hardhat-pipeline/internal/prediction"
	"hardhat-pipeline/internal/process"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prediction web app and run API",
	Long: `Serves the image upload page, the JSON prediction and run API, health and
metrics endpoints. Without RABBITMQ_URL submitted runs execute in-process.`,
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		port, _ := c.Flags().GetInt("port")
		if port == 0 {
			port = env.Port
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

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New(reg)

		var publisher messaging.Publisher
		if env.RabbitMQURL != "" {
			rabbit, err := messaging.NewRabbitMQPublisher(env.RabbitMQURL, env.QueueName)
			if err != nil {
				return fmt.Errorf("failed to create publisher: %w", err)
			}
			publisher = rabbit
		} else {
			factory, err := pipelineFactory(ctx, cfg, m)
			if err != nil {
				return err
			}

			queue := messaging.NewInMemoryQueue()
			worker := messaging.NewWorker(db, queue, factory, slog.Default())
			go func() {
				if err := worker.Run(ctx); err != nil {
					slog.Error("in-process worker stopped", "error", err)
				}
			}()

			n, err := messaging.RepublishQueued(ctx, db, queue)
			if err != nil {
				return err
			}
			if n > 0 {
				slog.Info("resubmitted queued runs", "count", n)
			}
			publisher = queue
		}
		defer publisher.Close()

		uploads, err := api.NewUploads(env.UploadDir)
		if err != nil {
			return err
		}
		detector := prediction.NewDetector(cfg.Prediction(), cfg.Python(), process.NewExecRunner(nil), m, slog.Default())

		router := api.NewRouter(
			api.NewBackendService(db, publisher, detector, uploads),
			api.NewWebService(uploads, detector),
			m,
		)

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		serverErrors := make(chan error, 1)
		go func() {
			slog.Info("starting server", "addr", srv.Addr, "uploads", uploads.Dir())
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil

		case <-ctx.Done():
			slog.Info("shutting down server")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			slog.Info("server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default $PORT or 8080)")
}
