package stages

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"hardhat-pipeline/internal/config"
	"hardhat-pipeline/internal/dataset"
	"hardhat-pipeline/internal/gate"
)

type Validation struct {
	cfg    config.DataValidation
	logger *slog.Logger
}

func NewValidation(cfg config.DataValidation, logger *slog.Logger) *Validation {
	return &Validation{cfg: cfg, logger: logger}
}

func (s *Validation) Name() string { return DataValidation }

// Validate checks the dataset structure, the image/label pairing of every split
// and the presence of the dataset description. Any filesystem error counts as
// a failed validation.
func (s *Validation) Validate() bool {
	l := s.cfg.Layout

	if err := dataset.CheckStructure(s.cfg.DataDir, l); err != nil {
		s.logger.Error("dataset structure is invalid", "error", err)
		return false
	}

	ok, empty := true, 0
	for _, split := range l.Splits() {
		report, err := dataset.CheckPairs(split,
			filepath.Join(s.cfg.DataDir, split, l.ImageDir),
			filepath.Join(s.cfg.DataDir, split, l.LabelDir),
			l,
		)
		if err != nil {
			s.logger.Error("unable to check split", "split", split, "error", err)
			return false
		}
		if report.Empty() {
			empty++
		}
		if !logReport(s.logger, report) {
			ok = false
		}
	}
	if !ok {
		return false
	}
	if empty == len(l.Splits()) {
		s.logger.Error("dataset has no images or labels in any split", "data_dir", s.cfg.DataDir)
		return false
	}

	descriptor := filepath.Join(s.cfg.DataDir, s.cfg.DataFile)
	if info, err := os.Stat(descriptor); err != nil || info.IsDir() {
		s.logger.Error("dataset description not found", "path", descriptor, "error", err)
		return false
	}

	return true
}

func (s *Validation) Run(ctx context.Context) error {
	ok := s.Validate()
	if err := gate.Write(s.cfg.StatusFile, "", ok); err != nil {
		return err
	}
	s.logger.Info("validation status written", "status", ok, "file", s.cfg.StatusFile)
	return nil
}

func logReport(logger *slog.Logger, r dataset.PairReport) bool {
	if r.Empty() {
		logger.Warn("split contains no images or labels", "split", r.Split)
		return true
	}
	if !r.Matched() {
		logger.Error("images and labels do not match", "split", r.Split,
			"missing_labels", r.MissingLabels, "missing_images", r.MissingImages)
		return false
	}
	logger.Debug("split validated", "split", r.Split, "images", r.Images, "labels", r.Labels)
	return true
}
