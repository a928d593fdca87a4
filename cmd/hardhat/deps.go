package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"hardhat-pipeline/cmd"
	"hardhat-pipeline/internal/config"
	"hardhat-pipeline/internal/messaging"
	"hardhat-pipeline/internal/metrics"
	"hardhat-pipeline/internal/pipeline"
	"hardhat-pipeline/internal/process"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(env.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", env.ConfigPath, err)
	}
	return cfg, nil
}

// pipelineFactory builds pipelines whose framework output is streamed to
// stdout and whose progress bars are drawn on stderr.
func pipelineFactory(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (messaging.PipelineFactory, error) {
	store, err := cmd.NewObjectStore(ctx, cfg.ModelPusher(), env)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Runner:   process.NewExecRunner(os.Stdout),
		Store:    store,
		Progress: os.Stderr,
		Metrics:  m,
		Logger:   slog.Default(),
	}

	return func(names ...string) (*pipeline.Pipeline, error) {
		return pipeline.Build(cfg, deps, names...)
	}, nil
}
