package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/mockup-studio/internal/domain"
	"github.com/timmy/mockup-studio/internal/logger"
)

// GenerateRequest is one call to the image-generation provider.
type GenerateRequest struct {
	Prompt      string
	AspectRatio string
	References  []string // product sample images, sent before the artwork
	Artwork     string
	Model       string
}

// ImageGenerator produces one image handle (usually a data URL) per call.
// Implementations must honour ctx so an in-flight call can be aborted.
type ImageGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// ResolvedReferences are the job-level images shared by every task of a job.
type ResolvedReferences struct {
	Artwork string
	Samples []string
}

// ReferenceResolver normalizes the artwork and sample images once per job.
type ReferenceResolver interface {
	Resolve(ctx context.Context, artwork string, samples []string) (*ResolvedReferences, error)
}

// LogSink durably records generation outcomes. Failures are not fatal to a task.
type LogSink interface {
	Append(ctx context.Context, entry domain.LogEntry) error
}

// UpdatePublisher receives every observable change of a running job.
type UpdatePublisher interface {
	Publish(update domain.JobUpdate)
}

// JobRecorder applies a runner's results and terminal transition to the job registry.
type JobRecorder interface {
	RecordResult(jobID string, entry domain.LogEntry) (domain.Progress, error)
	Finish(jobID string, status domain.JobStatus, errMsg string) error
}

// SampleSource supplies the auxiliary product reference images for new jobs.
type SampleSource interface {
	Samples() []string
}

// Task is one generation call within a job.
type Task struct {
	Index  int
	Prompt domain.Prompt
	Repeat int
}

// ExpandTasks flattens a job into prompt-major order: every repeat of the
// first prompt, then every repeat of the second, and so on.
func ExpandTasks(job *domain.Job) []Task {
	tasks := make([]Task, 0, len(job.Prompts)*job.Count)
	for _, p := range job.Prompts {
		for i := 0; i < job.Count; i++ {
			tasks = append(tasks, Task{Index: len(tasks), Prompt: p, Repeat: i})
		}
	}
	return tasks
}

// RunnerConfig holds optional runner settings.
type RunnerConfig struct {
	// TaskTimeout bounds each generation call. Zero leaves calls unbounded.
	TaskTimeout time.Duration
}

// JobRunner executes one running job at a time, strictly sequentially.
type JobRunner struct {
	generator   ImageGenerator
	resolver    ReferenceResolver
	sink        LogSink
	recorder    JobRecorder
	publisher   UpdatePublisher
	samples     SampleSource
	taskTimeout time.Duration
	now         func() time.Time
}

// NewJobRunner creates a runner. sink, publisher and samples may be nil.
func NewJobRunner(
	generator ImageGenerator,
	resolver ReferenceResolver,
	sink LogSink,
	recorder JobRecorder,
	publisher UpdatePublisher,
	samples SampleSource,
	cfg *RunnerConfig,
) *JobRunner {
	if cfg == nil {
		cfg = &RunnerConfig{}
	}
	return &JobRunner{
		generator:   generator,
		resolver:    resolver,
		sink:        sink,
		recorder:    recorder,
		publisher:   publisher,
		samples:     samples,
		taskTimeout: cfg.TaskTimeout,
		now:         time.Now,
	}
}

// Run executes job until it completes, is cancelled through ctx, or fails to
// set up. Task failures are recorded as failed entries and never stop the job.
// Run never panics or returns an error; the outcome is the returned status,
// which has already been applied to the recorder.
func (r *JobRunner) Run(ctx context.Context, job *domain.Job) (status domain.JobStatus) {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldJobID:     job.ID,
		logger.FieldSKU:       job.SKU,
		logger.FieldComponent: "runner",
	})
	start := r.now()

	r.publish(domain.JobUpdate{
		Kind:     domain.UpdateKindStatus,
		JobID:    job.ID,
		Status:   domain.JobStatusRunning,
		Progress: job.Progress,
	})
	logger.CtxInfo(ctx, "Job started: %d task(s)", job.Progress.Total)

	done := 0
	failed := 0
	defer func() {
		if p := recover(); p != nil {
			status = r.finish(ctx, job, done, domain.JobStatusError, fmt.Sprintf("unexpected failure: %v", p))
		}
		logger.With(logger.Fields{
			logger.FieldCount:  done,
			logger.FieldFailed: failed,
		}).WithDuration(r.now().Sub(start)).WithStatus(string(status)).Info(ctx, "Job finished")
	}()

	var samples []string
	if r.samples != nil {
		samples = r.samples.Samples()
	}
	refs, err := r.resolver.Resolve(ctx, job.ArtworkURL, samples)
	if err != nil {
		if ctx.Err() != nil {
			return r.finish(ctx, job, done, domain.JobStatusCancelled, "")
		}
		return r.finish(ctx, job, done, domain.JobStatusError, fmt.Sprintf("failed to prepare reference images: %v", err))
	}

	for _, task := range ExpandTasks(job) {
		if ctx.Err() != nil {
			return r.finish(ctx, job, done, domain.JobStatusCancelled, "")
		}

		entry := r.runTask(ctx, job, refs, task)

		// Outcomes that arrive after cancellation are dropped, not recorded.
		if ctx.Err() != nil {
			return r.finish(ctx, job, done, domain.JobStatusCancelled, "")
		}

		r.record(ctx, job, entry)
		done++
		if entry.Failed() {
			failed++
		}
	}

	return r.finish(ctx, job, done, domain.JobStatusCompleted, "")
}

func (r *JobRunner) runTask(ctx context.Context, job *domain.Job, refs *ResolvedReferences, task Task) domain.LogEntry {
	callCtx := ctx
	if r.taskTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.taskTimeout)
		defer cancel()
	}

	image, err := r.generator.Generate(callCtx, GenerateRequest{
		Prompt:      task.Prompt.Text,
		AspectRatio: job.AspectRatio,
		References:  refs.Samples,
		Artwork:     refs.Artwork,
		Model:       job.Model,
	})

	now := r.now()
	entry := domain.LogEntry{
		ID:        fmt.Sprintf("%s-%d-%s-%d-%d", job.ID, task.Index, task.Prompt.ID, task.Repeat, now.UnixMilli()),
		Type:      domain.EntryTypeMockup,
		Prompt:    task.Prompt.Text,
		JobID:     job.ID,
		CreatedAt: now,
	}
	if err != nil {
		entry.Error = taskErrorMessage(err)
		if ctx.Err() == nil {
			logger.FromContext(ctx).WithFields(logger.Fields{
				logger.FieldTaskIndex: task.Index,
				logger.FieldPromptID:  task.Prompt.ID,
			}).WithError(err).Warn("Generation task failed")
		}
		return entry
	}
	entry.DataURL = image
	return entry
}

func (r *JobRunner) record(ctx context.Context, job *domain.Job, entry domain.LogEntry) {
	progress, err := r.recorder.RecordResult(job.ID, entry)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to record task result")
	}

	if r.sink != nil {
		// The entry is already part of the job; persist it even if the job is cancelled meanwhile.
		if err := r.sink.Append(context.WithoutCancel(ctx), entry); err != nil {
			logger.FromContext(ctx).WithField("entry_id", entry.ID).WithError(err).Warn("Failed to persist generation log entry")
		}
	}

	e := entry
	r.publish(domain.JobUpdate{
		Kind:     domain.UpdateKindProgress,
		JobID:    job.ID,
		Status:   domain.JobStatusRunning,
		Progress: progress,
		Entry:    &e,
	})
}

func (r *JobRunner) finish(ctx context.Context, job *domain.Job, done int, status domain.JobStatus, errMsg string) domain.JobStatus {
	if err := r.recorder.Finish(job.ID, status, errMsg); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to finish job")
	}
	if status == domain.JobStatusError {
		logger.FromContext(ctx).WithField(logger.FieldStatus, string(status)).Error(errMsg)
	}

	r.publish(domain.JobUpdate{
		Kind:     domain.UpdateKindStatus,
		JobID:    job.ID,
		Status:   status,
		Progress: domain.Progress{Done: done, Total: job.Progress.Total},
		Error:    errMsg,
	})
	return status
}

func (r *JobRunner) publish(update domain.JobUpdate) {
	if r.publisher == nil {
		return
	}
	update.At = r.now()
	r.publisher.Publish(update)
}

func taskErrorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Generation timed out"
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Generation failed"
}
