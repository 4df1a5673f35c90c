package jobqueue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAction counts executions and optionally blocks until released.
type testAction struct {
	executed atomic.Int64
	release  chan struct{}
	fail     bool
}

func (a *testAction) Execute(ctx context.Context, data any) error {
	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.executed.Add(1)
	if a.fail {
		return assert.AnError
	}
	return nil
}

func (a *testAction) Name() string { return "test" }

func TestEnqueueNilAction(t *testing.T) {
	t.Parallel()

	q := NewJobQueue()
	q.Start()
	defer func() { require.NoError(t, q.Stop()) }()

	assert.ErrorIs(t, q.Enqueue(nil, nil), ErrNilAction)
}

func TestEnqueueBeforeStart(t *testing.T) {
	t.Parallel()

	q := NewJobQueue()
	assert.ErrorIs(t, q.Enqueue(&testAction{}, nil), ErrQueueStopped)
}

func TestJobsExecute(t *testing.T) {
	t.Parallel()

	q := NewJobQueueWithOptions(16, 2)
	q.Start()

	action := &testAction{}
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(action, i))
	}
	require.NoError(t, q.Stop())

	assert.Equal(t, int64(5), action.executed.Load())
	stats := q.GetStats()
	assert.Equal(t, 5, stats.Enqueued)
	assert.Equal(t, 5, stats.Succeeded)
}

func TestEnqueueDropsWhenFullWithoutBlocking(t *testing.T) {
	t.Parallel()

	q := NewJobQueueWithOptions(1, 1)
	q.Start()

	blocker := &testAction{release: make(chan struct{})}
	// first job occupies the single worker, second fills the queue
	require.NoError(t, q.Enqueue(blocker, nil))

	var dropped atomic.Int64
	q.SetDropHandler(func() { dropped.Add(1) })

	// the worker may not have picked up the first job yet, so fill until
	// full and then require a prompt drop
	deadline := time.Now().Add(time.Second)
	var err error
	for time.Now().Before(deadline) {
		start := time.Now()
		err = q.Enqueue(blocker, nil)
		require.Less(t, time.Since(start), 100*time.Millisecond, "Enqueue must not block")
		if err != nil {
			break
		}
	}
	require.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int64(1), dropped.Load())

	close(blocker.release)
	require.NoError(t, q.Stop())
}

func TestFailedJobsCounted(t *testing.T) {
	t.Parallel()

	q := NewJobQueueWithOptions(16, 1)
	q.Start()

	action := &testAction{fail: true}
	require.NoError(t, q.Enqueue(action, nil))
	require.NoError(t, q.Stop())

	stats := q.GetStats()
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Succeeded)
}

func TestStopDrainsQueuedJobs(t *testing.T) {
	t.Parallel()

	q := NewJobQueueWithOptions(16, 1)
	q.Start()

	action := &testAction{}
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(action, i))
	}
	require.NoError(t, q.Stop())

	assert.Equal(t, int64(10), action.executed.Load(), "queued jobs should run before shutdown completes")
}

func TestStartIsIdempotent(t *testing.T) {
	t.Parallel()

	q := NewJobQueueWithOptions(4, 1)
	q.Start()
	q.Start()

	require.NoError(t, q.Stop())
	require.NoError(t, q.Stop(), "stopping a stopped queue is a no-op")
}
