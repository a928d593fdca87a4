package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("pipeline run not found")

func nullError(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}

func CreateRun(ctx context.Context, db *gorm.DB, stages []string, origin string) (PipelineRun, error) {
	encoded, err := json.Marshal(stages)
	if err != nil {
		return PipelineRun{}, fmt.Errorf("error encoding stages: %w", err)
	}

	run := PipelineRun{
		Id:           uuid.New(),
		Status:       JobQueued,
		Origin:       origin,
		Stages:       encoded,
		CreationTime: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return PipelineRun{}, fmt.Errorf("error creating pipeline run: %w", err)
	}
	return run, nil
}

// UpdateRunStatus moves a run to status. Terminal statuses record the
// completion time and the failure message, if any.
func UpdateRunStatus(ctx context.Context, db *gorm.DB, runId uuid.UUID, status string, runErr error) error {
	now := time.Now().UTC()
	updates := map[string]any{"status": status}
	switch status {
	case JobRunning:
		updates["start_time"] = now
	case JobCompleted, JobFailed:
		updates["completion_time"] = now
		updates["error"] = nullError(runErr)
	}

	if err := db.WithContext(ctx).Model(&PipelineRun{Id: runId}).Updates(updates).Error; err != nil {
		slog.Error("error updating pipeline run status", "run_id", runId, "status", status, "error", err)
		return err
	}
	return nil
}

func GetRun(ctx context.Context, db *gorm.DB, runId uuid.UUID) (PipelineRun, error) {
	var run PipelineRun
	err := db.WithContext(ctx).
		Preload("StageRuns", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&run, "id = ?", runId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PipelineRun{}, ErrRunNotFound
		}
		return PipelineRun{}, fmt.Errorf("error getting pipeline run: %w", err)
	}
	return run, nil
}

type RunFilter struct {
	Status string
	Limit  int
}

// ListRuns returns runs newest first.
func ListRuns(ctx context.Context, db *gorm.DB, filter RunFilter) ([]PipelineRun, error) {
	query := db.WithContext(ctx).Order("creation_time DESC")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var runs []PipelineRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("error listing pipeline runs: %w", err)
	}
	return runs, nil
}

// QueuedRuns lists runs that were accepted but never picked up, oldest first.
func QueuedRuns(ctx context.Context, db *gorm.DB) ([]PipelineRun, error) {
	var runs []PipelineRun
	if err := db.WithContext(ctx).Where("status = ?", JobQueued).Order("creation_time ASC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("error listing queued runs: %w", err)
	}
	return runs, nil
}

func (r PipelineRun) StageNames() ([]string, error) {
	if len(r.Stages) == 0 {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal(r.Stages, &names); err != nil {
		return nil, fmt.Errorf("error decoding stages of run %s: %w", r.Id, err)
	}
	return names, nil
}

// RunRecorder writes the stage rows of a single pipeline run.
type RunRecorder struct {
	db    *gorm.DB
	runId uuid.UUID
}

func NewRunRecorder(db *gorm.DB, runId uuid.UUID) *RunRecorder {
	return &RunRecorder{db: db, runId: runId}
}

func (r *RunRecorder) StageStarted(ctx context.Context, position int, stage string) error {
	row := StageRun{
		RunId:     r.runId,
		Stage:     stage,
		Position:  position,
		Status:    JobRunning,
		StartTime: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("error recording start of stage %s: %w", stage, err)
	}
	return nil
}

func (r *RunRecorder) StageFinished(ctx context.Context, stage string, stageErr error) error {
	status := JobCompleted
	if stageErr != nil {
		status = JobFailed
	}

	updates := map[string]any{
		"status":          status,
		"completion_time": time.Now().UTC(),
		"error":           nullError(stageErr),
	}
	if err := r.db.WithContext(ctx).Model(&StageRun{RunId: r.runId, Stage: stage}).Updates(updates).Error; err != nil {
		return fmt.Errorf("error recording completion of stage %s: %w", stage, err)
	}
	return nil
}
