package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/mockup-studio/internal/domain"
	"github.com/timmy/mockup-studio/internal/logger"
)

// JobExecutor runs one job to a terminal state.
type JobExecutor interface {
	Run(ctx context.Context, job *domain.Job) domain.JobStatus
}

// Dispatcher is the host loop around the queue. Whenever batch mode is on,
// the single-flight lock is free and a job is queued, it starts that job.
// It reacts to enqueue, lock release and batch-mode changes; it never polls.
type Dispatcher struct {
	queue     *JobQueue
	executor  JobExecutor
	publisher UpdatePublisher
	lock      SingleFlight
	batchMode atomic.Bool
	kick      chan struct{}
	wg        sync.WaitGroup
	now       func() time.Time
}

// NewDispatcher creates a dispatcher. publisher may be nil.
func NewDispatcher(queue *JobQueue, executor JobExecutor, publisher UpdatePublisher, batchMode bool) *Dispatcher {
	d := &Dispatcher{
		queue:     queue,
		executor:  executor,
		publisher: publisher,
		kick:      make(chan struct{}, 1),
		now:       time.Now,
	}
	d.batchMode.Store(batchMode)
	return d
}

// Start runs the dispatch loop until ctx is done. Running jobs inherit ctx,
// so cancelling it also cancels the job in flight.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx = logger.SetComponent(ctx, "dispatcher")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.kick:
				d.dispatch(ctx)
			}
		}
	}()
	d.Notify()
}

// Wait blocks until the loop and any running job have returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Notify asks the loop to look for a runnable job. It never blocks.
func (d *Dispatcher) Notify() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// SetBatchMode turns automatic job execution on or off. Turning it off does
// not stop the running job; it only keeps the next one from starting.
func (d *Dispatcher) SetBatchMode(enabled bool) {
	d.batchMode.Store(enabled)
	if enabled {
		d.Notify()
	}
}

// BatchMode reports whether jobs are started automatically.
func (d *Dispatcher) BatchMode() bool {
	return d.batchMode.Load()
}

// Busy reports whether a job currently holds the single-flight lock.
func (d *Dispatcher) Busy() bool {
	return d.lock.Held()
}

// Queue exposes the underlying job registry for read-only queries.
func (d *Dispatcher) Queue() *JobQueue {
	return d.queue
}

// Enqueue validates req, appends a job and triggers a dispatch.
func (d *Dispatcher) Enqueue(ctx context.Context, req EnqueueRequest) (*domain.Job, error) {
	if req.ArtworkURL == "" {
		return nil, ErrMissingArtwork
	}
	job, err := d.queue.Enqueue(req)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldJobID: job.ID,
		logger.FieldSKU:   job.SKU,
	}).Infof("Job queued: %d prompt(s) x %d", len(job.Prompts), job.Count)

	d.publishStatus(job.ID, job.Status, job.Progress)
	d.Notify()
	return job, nil
}

// Cancel cancels a job. A queued job is cancelled at once; a running job is
// signalled and reaches cancelled when its runner unwinds.
func (d *Dispatcher) Cancel(ctx context.Context, id string) (*domain.Job, error) {
	status, err := d.queue.Cancel(id)
	if err != nil {
		return nil, err
	}
	job, err := d.queue.Get(id)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldJobID:  id,
		logger.FieldStatus: string(status),
	}).Info("Job cancel requested")

	if status == domain.JobStatusCancelled && job.StartedAt == nil {
		d.publishStatus(job.ID, job.Status, job.Progress)
	}
	return job, nil
}

// ClearCompleted drops terminal jobs from the queue.
func (d *Dispatcher) ClearCompleted(ctx context.Context) int {
	n := d.queue.ClearCompleted()
	if n > 0 {
		logger.FromContext(ctx).WithField(logger.FieldCount, n).Info("Cleared finished jobs")
	}
	return n
}

// dispatch is only called from the loop goroutine, which makes the
// select-then-mark sequence atomic with respect to other triggers.
func (d *Dispatcher) dispatch(ctx context.Context) {
	if !d.batchMode.Load() {
		return
	}
	if !d.lock.TryAcquire() {
		return
	}

	next := d.queue.SelectNext()
	if next == nil {
		d.lock.Release()
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	if err := d.queue.MarkRunning(next.ID, cancel); err != nil {
		cancel()
		d.lock.Release()
		if !errors.Is(err, ErrInvalidState) && !errors.Is(err, ErrJobNotFound) {
			logger.FromContext(ctx).WithField(logger.FieldJobID, next.ID).WithError(err).Error("Failed to start job")
		}
		// The job changed under us (e.g. cancelled while queued); look again.
		d.Notify()
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.Notify()
		defer d.lock.Release()
		defer cancel()
		d.executor.Run(jobCtx, next)
	}()
}

func (d *Dispatcher) publishStatus(id string, status domain.JobStatus, progress domain.Progress) {
	if d.publisher == nil {
		return
	}
	d.publisher.Publish(domain.JobUpdate{
		Kind:     domain.UpdateKindStatus,
		JobID:    id,
		Status:   status,
		Progress: progress,
		At:       d.now(),
	})
}
