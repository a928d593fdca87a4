package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"hardhat-pipeline/internal/config"
	"hardhat-pipeline/internal/metrics"
	"hardhat-pipeline/internal/process"
)

const resultsName = "results"

var ErrNoImage = errors.New("image path not provided")

type Detector struct {
	cfg     config.Prediction
	python  string
	runner  process.Runner
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewDetector(cfg config.Prediction, python string, runner process.Runner, m *metrics.Metrics, logger *slog.Logger) *Detector {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Detector{cfg: cfg, python: python, runner: runner, metrics: m, logger: logger}
}

// OutputDir is where annotated images are written.
func (d *Detector) OutputDir() (string, error) {
	out, err := filepath.Abs(d.cfg.OutputDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", d.cfg.OutputDir, err)
	}
	return filepath.Join(out, resultsName), nil
}

// Detect runs the detection script on one image and returns the directory the
// annotated copy was written to.
func (d *Detector) Detect(ctx context.Context, imagePath string) (string, error) {
	start := time.Now()
	out, err := d.detect(ctx, imagePath)
	d.metrics.ObservePrediction(time.Since(start), err)
	return out, err
}

func (d *Detector) detect(ctx context.Context, imagePath string) (string, error) {
	if imagePath == "" {
		return "", ErrNoImage
	}

	inputs := []struct{ name, path string }{
		{"image", imagePath},
		{"weights", d.cfg.WeightsPath},
		{"dataset", d.cfg.DatasetYAMLPath},
	}
	paths := make(map[string]string, len(inputs))
	for _, in := range inputs {
		abs, err := filepath.Abs(in.path)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", in.path, err)
		}
		if err := process.RequireFile(abs); err != nil {
			return "", fmt.Errorf("%s not found: %w", in.name, err)
		}
		paths[in.name] = abs
	}

	root, err := process.CheckScript(d.cfg.ModelRootPath, d.cfg.Script)
	if err != nil {
		return "", err
	}

	project, err := filepath.Abs(d.cfg.OutputDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", d.cfg.OutputDir, err)
	}
	if err := os.MkdirAll(project, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create output dir %s: %w", project, err)
	}

	cmd := process.Command{
		Name: d.python,
		Args: []string{
			d.cfg.Script,
			"--weights", paths["weights"],
			"--source", paths["image"],
			"--data", paths["dataset"],
			"--conf", strconv.FormatFloat(d.cfg.Confidence, 'f', -1, 64),
			"--project", project,
			"--name", resultsName,
			"--exist-ok",
		},
		Dir:     root,
		Timeout: d.cfg.Timeout,
	}
	d.logger.Info("running detection", "image", paths["image"], "command", cmd.String())

	res, err := d.runner.Run(ctx, cmd)
	if err != nil {
		d.logger.Error("detection failed", "image", paths["image"], "error", err)
		return "", fmt.Errorf("detection failed: %w", err)
	}

	out := filepath.Join(project, resultsName)
	d.logger.Info("image detected", "image", paths["image"], "output", out, "duration", res.Duration)
	return out, nil
}
