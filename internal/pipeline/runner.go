package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hardhat-pipeline/internal/metrics"
	"hardhat-pipeline/internal/stages"
)

// StageError reports which stage halted the pipeline.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", stages.Title(e.Stage), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Recorder persists per-stage progress of a run. Failures to record are logged
// and never stop the pipeline.
type Recorder interface {
	StageStarted(ctx context.Context, position int, stage string) error
	StageFinished(ctx context.Context, stage string, err error) error
}

type nopRecorder struct{}

func (nopRecorder) StageStarted(context.Context, int, string) error { return nil }

func (nopRecorder) StageFinished(context.Context, string, error) error { return nil }

type Pipeline struct {
	stages  []stages.Stage
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(list []stages.Stage, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Pipeline{stages: list, metrics: m, logger: logger}
}

func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run executes the stages in order on the calling goroutine and stops at the
// first failure.
func (p *Pipeline) Run(ctx context.Context, rec Recorder) error {
	if rec == nil {
		rec = nopRecorder{}
	}

	start := time.Now()
	err := p.run(ctx, rec)
	p.metrics.ObservePipeline(err)

	if err != nil {
		p.logger.Error("pipeline failed", "duration", time.Since(start), "error", err)
		return err
	}
	p.logger.Info("pipeline completed", "stages", len(p.stages), "duration", time.Since(start))
	return nil
}

func (p *Pipeline) run(ctx context.Context, rec Recorder) error {
	// History writes must survive a cancelled run so the failure is recorded.
	recordCtx := context.WithoutCancel(ctx)

	for i, stage := range p.stages {
		name := stage.Name()
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: name, Err: fmt.Errorf("pipeline interrupted: %w", err)}
		}

		p.logger.Info(fmt.Sprintf("[STARTED] >>>> %s <<<<", stages.Title(name)), "stage", name)
		if err := rec.StageStarted(recordCtx, i+1, name); err != nil {
			p.logger.Warn("unable to record stage start", "stage", name, "error", err)
		}

		start := time.Now()
		err := stage.Run(ctx)
		elapsed := time.Since(start)
		p.metrics.ObserveStage(name, elapsed, err)

		if recErr := rec.StageFinished(recordCtx, name, err); recErr != nil {
			p.logger.Warn("unable to record stage completion", "stage", name, "error", recErr)
		}

		if err != nil {
			p.logger.Error("stage failed", "stage", name, "duration", elapsed, "error", err)
			return &StageError{Stage: name, Err: err}
		}
		p.logger.Info(fmt.Sprintf("[COMPLETE] >>>> %s <<<<", stages.Title(name)), "stage", name, "duration", elapsed)
	}
	return nil
}
