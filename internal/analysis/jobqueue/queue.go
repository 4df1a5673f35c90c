// Package jobqueue provides a bounded queue for asynchronous fire-and-forget
// work. The frame loop must never block on persistence or alert checks, so
// when the queue is full new jobs are dropped and counted rather than queued.
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Common errors returned by job queue operations
var (
	ErrNilAction    = errors.New("cannot enqueue nil action")
	ErrQueueStopped = errors.New("job queue has been stopped")
	ErrQueueFull    = errors.New("job queue is full")
)

// Action defines the interface that must be implemented by any action
// that can be executed by the job queue.
type Action interface {
	Execute(ctx context.Context, data any) error
	// Name identifies the action in logs and stats.
	Name() string
}

type job struct {
	action Action
	data   any
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Enqueued  int
	Dropped   int
	Succeeded int
	Failed    int
}

// JobQueue runs enqueued actions on a fixed pool of workers.
type JobQueue struct {
	jobs       chan job
	mu         sync.Mutex
	stats      Stats
	isRunning  bool
	cancel     context.CancelFunc
	workers    int
	workerWG   sync.WaitGroup
	jobTimeout time.Duration
	onDrop     func()
}

// NewJobQueue creates a queue with default capacity and worker count.
func NewJobQueue() *JobQueue {
	return NewJobQueueWithOptions(256, 4)
}

// NewJobQueueWithOptions creates a queue holding at most maxJobs pending
// jobs, executed by the given number of workers.
func NewJobQueueWithOptions(maxJobs, workers int) *JobQueue {
	return &JobQueue{
		jobs:       make(chan job, maxJobs),
		workers:    workers,
		jobTimeout: 30 * time.Second,
	}
}

// SetDropHandler registers a callback invoked whenever a job is dropped
// because the queue was full.
func (q *JobQueue) SetDropHandler(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDrop = fn
}

// Start launches the worker goroutines.
func (q *JobQueue) Start() {
	q.StartWithContext(context.Background())
}

// StartWithContext launches the worker goroutines bound to the given context.
func (q *JobQueue) StartWithContext(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return
	}
	q.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for i := 0; i < q.workers; i++ {
		q.workerWG.Add(1)
		go q.worker(ctx)
	}
}

// Stop stops the queue and waits for in-flight jobs to finish.
func (q *JobQueue) Stop() error {
	return q.StopWithTimeout(10 * time.Second)
}

// StopWithTimeout stops the queue, waiting up to timeout for in-flight jobs.
func (q *JobQueue) StopWithTimeout(timeout time.Duration) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for jobs to complete after %v", timeout)
	}
}

// Enqueue submits a job without blocking. It returns ErrQueueFull when the
// queue is at capacity; the caller logs and moves on.
func (q *JobQueue) Enqueue(action Action, data any) error {
	if action == nil {
		return ErrNilAction
	}

	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return ErrQueueStopped
	}
	onDrop := q.onDrop
	q.mu.Unlock()

	select {
	case q.jobs <- job{action: action, data: data}:
		q.mu.Lock()
		q.stats.Enqueued++
		q.mu.Unlock()
		return nil
	default:
		q.mu.Lock()
		q.stats.Dropped++
		q.mu.Unlock()
		if onDrop != nil {
			onDrop()
		}
		return fmt.Errorf("%w: maximum queue size (%d) reached", ErrQueueFull, cap(q.jobs))
	}
}

// GetStats returns a snapshot of the current job statistics.
func (q *JobQueue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

func (q *JobQueue) worker(ctx context.Context) {
	defer q.workerWG.Done()
	for {
		select {
		case <-ctx.Done():
			// drain whatever is already queued before exiting
			for {
				select {
				case j := <-q.jobs:
					q.executeJob(context.Background(), j)
				default:
					return
				}
			}
		case j := <-q.jobs:
			q.executeJob(ctx, j)
		}
	}
}

// executeJob runs one job with a timeout and panic recovery.
func (q *JobQueue) executeJob(ctx context.Context, j job) {
	execCtx, cancel := context.WithTimeout(ctx, q.jobTimeout)
	defer cancel()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job execution panicked: %v", r)
			}
		}()
		err = j.action.Execute(execCtx, j.data)
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	if err != nil {
		q.stats.Failed++
		logger.Error("job failed", "action", j.action.Name(), "error", err)
	} else {
		q.stats.Succeeded++
	}
}
