package messaging

import (
	"context"
	"encoding/json"
	"sync"
)

type inMemoryTask struct {
	taskType string
	payload  []byte
}

func (t *inMemoryTask) Type() string {
	return t.taskType
}

func (t *inMemoryTask) Payload() []byte {
	return t.payload
}

func (t *inMemoryTask) Ack() error {
	return nil
}

func (t *inMemoryTask) Nack() error {
	return nil
}

func (t *inMemoryTask) Reject() error {
	return nil
}

// InMemoryQueue serves as both Publisher and Receiver when the API server
// and the worker share a process.
type InMemoryQueue struct {
	tasks chan Task
	once  sync.Once
}

var (
	_ Publisher = (*InMemoryQueue)(nil)
	_ Receiver  = (*InMemoryQueue)(nil)
)

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks: make(chan Task, 100),
	}
}

func (q *InMemoryQueue) publishTaskInternal(ctx context.Context, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	select {
	case q.tasks <- &inMemoryTask{taskType: taskType, payload: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemoryQueue) PublishPipelineRun(ctx context.Context, payload PipelineRunPayload) error {
	return q.publishTaskInternal(ctx, PipelineRunTask, payload)
}

func (q *InMemoryQueue) Tasks() <-chan Task {
	return q.tasks
}

func (q *InMemoryQueue) Close() {
	q.once.Do(func() {
		close(q.tasks)
	})
}
