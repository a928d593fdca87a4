package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"hardhat-pipeline/internal/database"
	"hardhat-pipeline/internal/messaging"
	"hardhat-pipeline/internal/stages"
	"hardhat-pipeline/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

var runStatuses = []string{database.JobQueued, database.JobRunning, database.JobCompleted, database.JobFailed}

type Detector interface {
	Detect(ctx context.Context, imagePath string) (string, error)
}

type BackendService struct {
	db        *gorm.DB
	publisher messaging.Publisher
	detector  Detector
	uploads   *Uploads
}

func NewBackendService(db *gorm.DB, publisher messaging.Publisher, detector Detector, uploads *Uploads) *BackendService {
	return &BackendService{db: db, publisher: publisher, detector: detector, uploads: uploads}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.With(middleware.RequestSize(MaxUploadBytes)).Post("/predict", RestHandler(s.Predict))
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", RestHandler(s.SubmitRun))
		r.Get("/", RestHandler(s.ListRuns))
		r.Get("/{run_id}", RestHandler(s.GetRun))
	})
}

func (s *BackendService) Predict(r *http.Request) (any, error) {
	path, err := s.uploads.Save(r)
	if err != nil {
		return nil, err
	}

	out, err := s.detector.Detect(r.Context(), path)
	if err != nil {
		return nil, CodedError(http.StatusInternalServerError, fmt.Errorf("detection failed: %w", err))
	}

	return api.PredictResponse{Image: path, OutputDir: out}, nil
}

func (s *BackendService) SubmitRun(r *http.Request) (any, error) {
	var req api.RunRequest
	if r.ContentLength != 0 {
		var err error
		if req, err = ParseRequest[api.RunRequest](r); err != nil {
			return nil, err
		}
	}

	var selected []string
	if len(req.Stages) > 0 {
		var err error
		if selected, err = stages.Select(req.Stages); err != nil {
			return nil, CodedError(http.StatusBadRequest, err)
		}
	}

	ctx := r.Context()

	run, err := database.CreateRun(ctx, s.db, selected, database.OriginAPI)
	if err != nil {
		slog.Error("error creating pipeline run", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create pipeline run entry")
	}

	if err := s.publisher.PublishPipelineRun(ctx, messaging.PipelineRunPayload{RunId: run.Id, Stages: selected}); err != nil {
		slog.Error("error publishing pipeline run", "run_id", run.Id, "error", err)
		if err := database.UpdateRunStatus(context.WithoutCancel(ctx), s.db, run.Id, database.JobFailed, err); err != nil {
			slog.Error("error marking unpublished run as failed", "run_id", run.Id, "error", err)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue pipeline run")
	}

	slog.Info("queued pipeline run", "run_id", run.Id, "stages", selected)
	return api.RunSubmitResponse{Message: "Pipeline run queued", RunId: run.Id}, nil
}

func (s *BackendService) ListRuns(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListRunsParams](r)
	if err != nil {
		return nil, err
	}

	switch {
	case params.Limit < 0:
		return nil, CodedErrorf(http.StatusBadRequest, "limit must not be negative")
	case params.Limit == 0:
		params.Limit = defaultRunLimit
	case params.Limit > maxRunLimit:
		params.Limit = maxRunLimit
	}

	status := strings.ToUpper(params.Status)
	if status != "" && !slices.Contains(runStatuses, status) {
		return nil, CodedErrorf(http.StatusBadRequest, "invalid status '%s': expected one of %v", params.Status, runStatuses)
	}

	runs, err := database.ListRuns(r.Context(), s.db, database.RunFilter{Status: status, Limit: params.Limit})
	if err != nil {
		slog.Error("error listing pipeline runs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving pipeline runs")
	}

	return convertPipelineRuns(runs), nil
}

func (s *BackendService) GetRun(r *http.Request) (any, error) {
	runId, err := URLParamUUID(r, "run_id")
	if err != nil {
		return nil, err
	}

	run, err := database.GetRun(r.Context(), s.db, runId)
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "pipeline run not found")
		}
		slog.Error("error getting pipeline run", "run_id", runId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving pipeline run record")
	}

	return convertPipelineRun(run), nil
}
