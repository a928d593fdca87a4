package api

import (
	"database/sql"
	"log/slog"
	"time"

	"hardhat-pipeline/internal/database"
	"hardhat-pipeline/pkg/api"
)

func convertTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func convertStageRun(s database.StageRun) api.StageRun {
	return api.StageRun{
		Stage:          s.Stage,
		Position:       s.Position,
		Status:         s.Status,
		StartTime:      s.StartTime,
		CompletionTime: convertTime(s.CompletionTime),
		Error:          s.Error.String,
	}
}

func convertPipelineRun(r database.PipelineRun) api.PipelineRun {
	stages, err := r.StageNames()
	if err != nil {
		slog.Warn("unable to decode run stages", "run_id", r.Id, "error", err)
	}

	run := api.PipelineRun{
		Id:             r.Id,
		Status:         r.Status,
		Origin:         r.Origin,
		Stages:         stages,
		CreationTime:   r.CreationTime,
		StartTime:      convertTime(r.StartTime),
		CompletionTime: convertTime(r.CompletionTime),
		Error:          r.Error.String,
	}
	for _, s := range r.StageRuns {
		run.StageRuns = append(run.StageRuns, convertStageRun(s))
	}
	return run
}

func convertPipelineRuns(runs []database.PipelineRun) []api.PipelineRun {
	out := make([]api.PipelineRun, 0, len(runs))
	for _, r := range runs {
		out = append(out, convertPipelineRun(r))
	}
	return out
}
