package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/mockup-studio/internal/domain"
)

// recordingExecutor finishes each job immediately and records run order.
type recordingExecutor struct {
	queue   *JobQueue
	mu      sync.Mutex
	order   []string
	running int32
	overlap int32
	release chan struct{}
	done    chan string
}

func newRecordingExecutor(q *JobQueue) *recordingExecutor {
	return &recordingExecutor{queue: q, done: make(chan string, 16)}
}

func (e *recordingExecutor) Run(ctx context.Context, job *domain.Job) domain.JobStatus {
	if atomic.AddInt32(&e.running, 1) > 1 {
		atomic.StoreInt32(&e.overlap, 1)
	}
	defer atomic.AddInt32(&e.running, -1)

	e.mu.Lock()
	e.order = append(e.order, job.ID)
	e.mu.Unlock()

	status := domain.JobStatusCompleted
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			status = domain.JobStatusCancelled
		}
	}
	_ = e.queue.Finish(job.ID, status, "")
	e.done <- job.ID
	return status
}

func (e *recordingExecutor) Order() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

func waitDone(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	var got []string
	for i := 0; i < n; i++ {
		select {
		case id := <-ch:
			got = append(got, id)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d of %d", i+1, n)
		}
	}
	return got
}

func TestDispatcher_RunsJobsFIFO(t *testing.T) {
	q := newTestQueue()
	exec := newRecordingExecutor(q)
	d := NewDispatcher(q, exec, nil, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		d.Wait()
	}()

	for i := 0; i < 3; i++ {
		_, err := d.Enqueue(ctx, enqueueReq(1, "a"))
		require.NoError(t, err)
	}
	d.Start(ctx)

	assert.Equal(t, []string{"job-1", "job-2", "job-3"}, waitDone(t, exec.done, 3))
	assert.Equal(t, []string{"job-1", "job-2", "job-3"}, exec.Order())
	assert.Zero(t, atomic.LoadInt32(&exec.overlap), "jobs must never overlap")
}

func TestDispatcher_OneJobAtATime(t *testing.T) {
	q := newTestQueue()
	exec := newRecordingExecutor(q)
	exec.release = make(chan struct{})
	d := NewDispatcher(q, exec, nil, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		d.Wait()
	}()
	d.Start(ctx)

	_, err := d.Enqueue(ctx, enqueueReq(1, "a"))
	require.NoError(t, err)
	_, err = d.Enqueue(ctx, enqueueReq(1, "b"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return q.Stats().Running == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	stats := q.Stats()
	assert.Equal(t, 1, stats.Running)
	assert.Equal(t, 1, stats.Queued)
	assert.True(t, d.Busy())

	exec.release <- struct{}{}
	exec.release <- struct{}{}
	waitDone(t, exec.done, 2)
	assert.Zero(t, atomic.LoadInt32(&exec.overlap))
}

func TestDispatcher_BatchModeGate(t *testing.T) {
	q := newTestQueue()
	exec := newRecordingExecutor(q)
	d := NewDispatcher(q, exec, nil, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		d.Wait()
	}()
	d.Start(ctx)

	_, err := d.Enqueue(ctx, enqueueReq(1, "a"))
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, exec.Order(), "nothing runs while batch mode is off")

	d.SetBatchMode(true)
	assert.True(t, d.BatchMode())
	assert.Equal(t, []string{"job-1"}, waitDone(t, exec.done, 1))
}

func TestDispatcher_EnqueueRequiresArtwork(t *testing.T) {
	q := newTestQueue()
	d := NewDispatcher(q, newRecordingExecutor(q), nil, true)

	req := enqueueReq(1, "a")
	req.ArtworkURL = ""
	_, err := d.Enqueue(context.Background(), req)
	assert.ErrorIs(t, err, ErrMissingArtwork)
	assert.Empty(t, q.List())
}

func TestDispatcher_CancelQueuedSkipsJob(t *testing.T) {
	q := newTestQueue()
	exec := newRecordingExecutor(q)
	broker := NewBroker(16)
	updates, unsub := broker.Subscribe()
	defer unsub()
	d := NewDispatcher(q, exec, broker, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		d.Wait()
	}()
	d.Start(ctx)

	a, _ := d.Enqueue(ctx, enqueueReq(1, "a"))
	b, _ := d.Enqueue(ctx, enqueueReq(1, "b"))

	job, err := d.Cancel(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, job.Status)

	d.SetBatchMode(true)
	assert.Equal(t, []string{b.ID}, waitDone(t, exec.done, 1))

	var sawCancel bool
	for len(updates) > 0 {
		u := <-updates
		if u.JobID == a.ID && u.Status == domain.JobStatusCancelled {
			sawCancel = true
		}
	}
	assert.True(t, sawCancel)

	assert.Equal(t, 2, d.ClearCompleted(ctx))
	assert.Empty(t, q.List())
}

func TestDispatcher_CancelRunningJob(t *testing.T) {
	q := newTestQueue()
	exec := newRecordingExecutor(q)
	exec.release = make(chan struct{})
	d := NewDispatcher(q, exec, nil, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		d.Wait()
	}()
	d.Start(ctx)

	a, _ := d.Enqueue(ctx, enqueueReq(1, "a"))
	require.Eventually(t, func() bool { return q.Stats().Running == 1 }, time.Second, 5*time.Millisecond)

	_, err := d.Cancel(ctx, a.ID)
	require.NoError(t, err)
	waitDone(t, exec.done, 1)

	got, _ := q.Get(a.ID)
	assert.Equal(t, domain.JobStatusCancelled, got.Status)
	require.Eventually(t, func() bool { return !d.Busy() }, time.Second, 5*time.Millisecond)
}
