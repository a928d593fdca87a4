package stages

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"hardhat-pipeline/internal/config"
	"hardhat-pipeline/internal/dataset"
	"hardhat-pipeline/internal/process"
)

type Trainer struct {
	cfg    config.ModelTrainer
	python string
	runner process.Runner
	logger *slog.Logger
}

func NewTrainer(cfg config.ModelTrainer, python string, runner process.Runner, logger *slog.Logger) *Trainer {
	return &Trainer{cfg: cfg, python: python, runner: runner, logger: logger}
}

func (s *Trainer) Name() string { return ModelTrainer }

func (s *Trainer) Run(ctx context.Context) error {
	descriptor, err := absPath(s.cfg.OutputYAMLPath)
	if err != nil {
		return err
	}
	d, err := dataset.GenerateDescriptor(s.cfg.InputYAMLPath, descriptor, s.cfg.DataDir, s.cfg.Layout)
	if err != nil {
		return err
	}
	s.logger.Info("dataset description generated", "path", descriptor, "classes", len(d.Names))

	root, err := process.CheckScript(s.cfg.ModelRootPath, s.cfg.Script)
	if err != nil {
		return err
	}

	project, err := absPath(s.cfg.RootDir)
	if err != nil {
		return err
	}

	cmd := process.Command{
		Name: s.python,
		Args: scriptArgs{
			Weights: s.cfg.WeightName,
			Data:    descriptor,
			Batch:   s.cfg.BatchSize,
			Epochs:  s.cfg.Epochs,
			Project: project,
			Name:    s.cfg.RunName,
			Cache:   true,
		}.build(s.cfg.Script),
		Dir:     root,
		Timeout: s.cfg.Timeout,
	}
	s.logger.Info("starting training", "command", cmd.String())

	res, err := s.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	s.logger.Info("training finished", "duration", res.Duration)

	best := filepath.Join(project, s.cfg.RunName, "weights", "best.pt")
	if err := process.RequireFile(best); err != nil {
		return fmt.Errorf("training produced no weights: %w", err)
	}
	if err := dataset.CopyFile(best, s.cfg.TrainedWeightsPath); err != nil {
		return err
	}
	s.logger.Info("trained weights saved", "path", s.cfg.TrainedWeightsPath)

	return nil
}
