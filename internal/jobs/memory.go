package jobs

import (
	"context"
	"sync"

	"github.com/banshee-data/growth.report/internal/monitoring"
)

var logf = monitoring.Component("jobs")

// MemoryQueue is an in-process Queue backed by a buffered channel. Jobs are
// lost on restart; use AMQPQueue when that matters.
type MemoryQueue struct {
	jobs    chan Job
	workers int
	done    chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewMemoryQueue returns a queue holding up to size pending jobs, consumed by
// workers goroutines.
func NewMemoryQueue(size, workers int) *MemoryQueue {
	if size < 0 {
		size = 0
	}
	if workers < 1 {
		workers = 1
	}
	return &MemoryQueue{jobs: make(chan Job, size), workers: workers, done: make(chan struct{})}
}

// Publish enqueues j, blocking while the buffer is full. A blocked Publish
// returns ErrQueueClosed as soon as the queue is closed.
func (q *MemoryQueue) Publish(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- j:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume runs the worker pool. After Close the workers drain what is left
// in the buffer and Consume returns nil.
func (q *MemoryQueue) Consume(ctx context.Context, h Handler) error {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case j, ok := <-q.jobs:
					if !ok {
						return
					}
					runHandler(ctx, h, j)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Close stops accepting jobs. It is safe to call more than once.
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() {
		// Wake blocked publishers so they release the read lock.
		close(q.done)
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()
	})
	return nil
}

// Len is the number of buffered jobs.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

// runHandler calls h and keeps the worker alive if it panics.
func runHandler(ctx context.Context, h Handler, j Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logf("job %s for %s panicked: %v", j.ID, j.UserID, r)
			err = errPanic
		}
	}()
	if err = h(ctx, j); err != nil {
		logf("job %s for %s failed: %v", j.ID, j.UserID, err)
	}
	return err
}
