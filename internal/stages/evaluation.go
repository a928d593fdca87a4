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

type Evaluation struct {
	cfg    config.ModelEvaluation
	python string
	runner process.Runner
	logger *slog.Logger
}

func NewEvaluation(cfg config.ModelEvaluation, python string, runner process.Runner, logger *slog.Logger) *Evaluation {
	return &Evaluation{cfg: cfg, python: python, runner: runner, logger: logger}
}

func (s *Evaluation) Name() string { return ModelEvaluation }

// ResultsDir is where the evaluation script writes its metrics and plots.
func (s *Evaluation) ResultsDir() string {
	return filepath.Join(s.cfg.RootDir, s.cfg.RunName)
}

func (s *Evaluation) Run(ctx context.Context) error {
	weights, err := absPath(s.cfg.WeightsPath)
	if err != nil {
		return err
	}
	if err := process.RequireFile(weights); err != nil {
		return fmt.Errorf("no trained weights to evaluate: %w", err)
	}

	descriptor, err := absPath(s.cfg.OutputYAMLPath)
	if err != nil {
		return err
	}
	if _, err := dataset.GenerateDescriptor(s.cfg.InputYAMLPath, descriptor, s.cfg.DataDir, s.cfg.Layout); err != nil {
		return err
	}

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
			Weights: weights,
			Data:    descriptor,
			Batch:   s.cfg.BatchSize,
			Project: project,
			Name:    s.cfg.RunName,
		}.build(s.cfg.Script),
		Dir:     root,
		Timeout: s.cfg.Timeout,
	}
	s.logger.Info("starting evaluation", "command", cmd.String())

	res, err := s.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	s.logger.Info("evaluation finished", "duration", res.Duration, "results", s.ResultsDir())

	return nil
}
