package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	PipelineQueue   = "pipeline_runs"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

// PipelineRunTask is the Type of every task carrying a PipelineRunPayload,
// whatever queue it was routed through.
const PipelineRunTask = "pipeline_run"

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// PipelineRunPayload asks a worker to execute a recorded pipeline run. No
// stages means the full pipeline.
type PipelineRunPayload struct {
	RunId  uuid.UUID
	Stages []string
}

type Publisher interface {
	PublishPipelineRun(ctx context.Context, payload PipelineRunPayload) error

	Close()
}

type Receiver interface {
	Tasks() <-chan Task

	Close()
}
