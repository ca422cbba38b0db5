package queue

import "context"

// MemoryQueue is a channel-backed FIFO queue, grounded on the original
// gateway's asyncio.Queue-based _MemoryQueue.
type MemoryQueue struct {
	ch chan Job
}

// NewMemoryQueue builds a MemoryQueue with the given buffer capacity.
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{ch: make(chan Job, capacity)}
}

func (q *MemoryQueue) Put(ctx context.Context, job Job) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Get(ctx context.Context) (Job, error) {
	select {
	case job := <-q.ch:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}
