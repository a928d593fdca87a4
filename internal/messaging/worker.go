package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"hardhat-pipeline/internal/database"
	"hardhat-pipeline/internal/pipeline"

	"gorm.io/gorm"
)

// PipelineFactory builds a pipeline for the named stages, every stage when
// none are given.
type PipelineFactory func(stages ...string) (*pipeline.Pipeline, error)

// Worker executes queued pipeline runs one at a time.
type Worker struct {
	db       *gorm.DB
	receiver Receiver
	build    PipelineFactory
	logger   *slog.Logger
}

func NewWorker(db *gorm.DB, receiver Receiver, build PipelineFactory, logger *slog.Logger) *Worker {
	return &Worker{db: db, receiver: receiver, build: build, logger: logger}
}

// Run consumes tasks until ctx is done or the receiver is closed.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping", "reason", ctx.Err())
			return nil
		case task, ok := <-w.receiver.Tasks():
			if !ok {
				w.logger.Info("task channel closed, worker stopping")
				return nil
			}
			w.process(ctx, task)
		}
	}
}

func (w *Worker) process(ctx context.Context, task Task) {
	if task.Type() != PipelineRunTask {
		w.logger.Error("received task of unknown type", "type", task.Type())
		if err := task.Reject(); err != nil {
			w.logger.Error("error rejecting task", "error", err)
		}
		return
	}

	var payload PipelineRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		w.logger.Error("error parsing pipeline run payload", "error", err)
		if err := task.Reject(); err != nil {
			w.logger.Error("error rejecting task", "error", err)
		}
		return
	}

	if err := w.RunPipeline(ctx, payload); err != nil {
		w.logger.Error("pipeline run failed", "run_id", payload.RunId, "error", err)
	}

	// Failed runs are recorded and never redelivered.
	if err := task.Ack(); err != nil {
		w.logger.Error("error acknowledging task", "run_id", payload.RunId, "error", err)
	}
}

// RunPipeline executes the recorded run described by payload and stores the
// outcome. Runs that are no longer queued are skipped.
func (w *Worker) RunPipeline(ctx context.Context, payload PipelineRunPayload) error {
	logger := w.logger.With("run_id", payload.RunId)

	run, err := database.GetRun(ctx, w.db, payload.RunId)
	if err != nil {
		return fmt.Errorf("error loading run %s: %w", payload.RunId, err)
	}
	if run.Status != database.JobQueued {
		logger.Warn("skipping run that is not queued", "status", run.Status)
		return nil
	}

	// Status writes must land even when the run is interrupted.
	recordCtx := context.WithoutCancel(ctx)

	p, err := w.build(payload.Stages...)
	if err != nil {
		if updateErr := database.UpdateRunStatus(recordCtx, w.db, run.Id, database.JobFailed, err); updateErr != nil {
			return errors.Join(err, updateErr)
		}
		return err
	}

	if err := database.UpdateRunStatus(recordCtx, w.db, run.Id, database.JobRunning, nil); err != nil {
		return fmt.Errorf("error marking run as running: %w", err)
	}

	logger.Info("pipeline run started", "stages", p.Stages())
	runErr := p.Run(ctx, database.NewRunRecorder(w.db, run.Id))

	status := database.JobCompleted
	if runErr != nil {
		status = database.JobFailed
	}
	if err := database.UpdateRunStatus(recordCtx, w.db, run.Id, status, runErr); err != nil {
		return errors.Join(runErr, fmt.Errorf("error recording run outcome: %w", err))
	}

	logger.Info("pipeline run finished", "status", status)
	return runErr
}

// RepublishQueued re-submits runs that were accepted but never executed, so a
// restarted in-memory queue does not lose them.
func RepublishQueued(ctx context.Context, db *gorm.DB, publisher Publisher) (int, error) {
	runs, err := database.QueuedRuns(ctx, db)
	if err != nil {
		return 0, err
	}

	for i, run := range runs {
		names, err := run.StageNames()
		if err != nil {
			return i, err
		}
		if err := publisher.PublishPipelineRun(ctx, PipelineRunPayload{RunId: run.Id, Stages: names}); err != nil {
			return i, fmt.Errorf("error republishing run %s: %w", run.Id, err)
		}
	}
	return len(runs), nil
}
