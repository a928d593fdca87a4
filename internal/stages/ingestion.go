package stages

import (
	"context"
	"fmt"
	"log/slog"

	"hardhat-pipeline/internal/config"
	"hardhat-pipeline/internal/roboflow"
)

type Downloader interface {
	Download(ctx context.Context, e roboflow.Export, dest string) error
}

type Ingestion struct {
	cfg        config.DataIngestion
	downloader Downloader
	logger     *slog.Logger
}

func NewIngestion(cfg config.DataIngestion, downloader Downloader, logger *slog.Logger) *Ingestion {
	return &Ingestion{cfg: cfg, downloader: downloader, logger: logger}
}

func (s *Ingestion) Name() string { return DataIngestion }

func (s *Ingestion) Run(ctx context.Context) error {
	if !s.cfg.DownloadEnabled {
		// The dataset API limits how often an export may be downloaded.
		s.logger.Warn("dataset download disabled, using data already on disk", "dir", s.cfg.RootDir)
		return nil
	}

	export := roboflow.Export{
		Workspace: s.cfg.Workspace,
		Project:   s.cfg.Project,
		Version:   s.cfg.Version,
		Format:    s.cfg.ExportFormat,
	}
	s.logger.Info("downloading dataset", "project", export.Project, "version", export.Version, "dir", s.cfg.RootDir)

	if err := s.downloader.Download(ctx, export, s.cfg.RootDir); err != nil {
		return fmt.Errorf("failed to download dataset: %w", err)
	}
	return nil
}
