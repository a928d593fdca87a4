package pipeline

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"hardhat-pipeline/internal/config"
	"hardhat-pipeline/internal/metrics"
	"hardhat-pipeline/internal/process"
	"hardhat-pipeline/internal/roboflow"
	"hardhat-pipeline/internal/stages"
	"hardhat-pipeline/internal/storage"
)

var ErrNoObjectStore = errors.New("model pusher requires an object store")

// Deps are the collaborators shared by the stages. Zero values fall back to
// the production implementations where one exists.
type Deps struct {
	Runner     process.Runner
	Store      storage.ObjectStore
	Downloader stages.Downloader
	Progress   io.Writer
	Metrics    *metrics.Metrics
	Now        func() time.Time
	Logger     *slog.Logger
}

// Build assembles the selected stages from one loaded configuration. No names
// selects every stage.
func Build(cfg *config.Config, deps Deps, names ...string) (*Pipeline, error) {
	selected, err := stages.Select(names)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runner := deps.Runner
	if runner == nil {
		runner = process.NewExecRunner(nil)
	}

	list := make([]stages.Stage, 0, len(selected))
	for _, name := range selected {
		stageLogger := logger.With("stage", name)

		var stage stages.Stage
		switch name {
		case stages.DataIngestion:
			downloader := deps.Downloader
			if downloader == nil {
				ingestion := cfg.DataIngestion()
				downloader = roboflow.NewClient(ingestion.APIURL, ingestion.APIKey)
			}
			stage = stages.NewIngestion(cfg.DataIngestion(), downloader, stageLogger)
		case stages.DataValidation:
			stage = stages.NewValidation(cfg.DataValidation(), stageLogger)
		case stages.DataTransformation:
			stage = stages.NewTransformation(cfg.DataTransformation(), deps.Progress, stageLogger)
		case stages.ModelTrainer:
			stage = stages.NewTrainer(cfg.ModelTrainer(), cfg.Python(), runner, stageLogger)
		case stages.ModelEvaluation:
			stage = stages.NewEvaluation(cfg.ModelEvaluation(), cfg.Python(), runner, stageLogger)
		case stages.ModelPusher:
			if deps.Store == nil {
				return nil, ErrNoObjectStore
			}
			stage = stages.NewPusher(cfg.ModelPusher(), deps.Store, deps.Now, stageLogger)
		}
		list = append(list, stage)
	}

	return New(list, deps.Metrics, logger), nil
}
