package stages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"hardhat-pipeline/internal/config"
	"hardhat-pipeline/internal/dataset"
	"hardhat-pipeline/internal/gate"
)

var ErrPairMismatch = errors.New("transformed dataset has unmatched images or labels")

type Transformation struct {
	cfg      config.DataTransformation
	progress io.Writer
	logger   *slog.Logger
}

// NewTransformation builds the stage. progress may be nil.
func NewTransformation(cfg config.DataTransformation, progress io.Writer, logger *slog.Logger) *Transformation {
	return &Transformation{cfg: cfg, progress: progress, logger: logger}
}

func (s *Transformation) Name() string { return DataTransformation }

func (s *Transformation) Run(ctx context.Context) error {
	if err := gate.Require(s.cfg.StatusFile); err != nil {
		return err
	}

	l := s.cfg.Layout
	stats, err := dataset.Relayout(ctx, s.cfg.DataDir, s.cfg.RootDir, l, s.progress)
	if err != nil {
		return fmt.Errorf("failed to copy dataset to %s: %w", s.cfg.RootDir, err)
	}
	s.logger.Info("dataset copied", "dir", s.cfg.RootDir, "images", stats.Images, "labels", stats.Labels)

	var mismatched []string
	for _, split := range l.Splits() {
		report, err := dataset.CheckPairs(split,
			filepath.Join(s.cfg.RootDir, l.ImageDir, split),
			filepath.Join(s.cfg.RootDir, l.LabelDir, split),
			l,
		)
		if err != nil {
			return err
		}
		if !logReport(s.logger, report) {
			mismatched = append(mismatched, split)
		}
	}
	if len(mismatched) > 0 {
		return fmt.Errorf("%w: splits %v", ErrPairMismatch, mismatched)
	}

	return nil
}
