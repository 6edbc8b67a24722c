package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/mockup-studio/internal/domain"
)

// EnqueueRequest describes a new batch job.
type EnqueueRequest struct {
	Prompts     []domain.Prompt `json:"prompts"`
	Count       int             `json:"count"`
	AspectRatio string          `json:"aspect_ratio"`
	SKU         string          `json:"sku"`
	ArtworkURL  string          `json:"artwork_url"`
	Model       string          `json:"model"`
}

// QueueStats holds job counts per status.
type QueueStats struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	Error     int `json:"error"`
	Total     int `json:"total"`
}

// JobQueue is the in-memory, insertion-ordered registry of batch jobs.
// Jobs are kept by id and mutated in place; callers only ever receive clones.
type JobQueue struct {
	mu      sync.RWMutex
	jobs    map[string]*domain.Job
	order   []string
	cancels map[string]context.CancelFunc
	now     func() time.Time
	newID   func() string
}

// NewJobQueue creates an empty queue.
func NewJobQueue() *JobQueue {
	return &JobQueue{
		jobs:    make(map[string]*domain.Job),
		cancels: make(map[string]context.CancelFunc),
		now:     time.Now,
		newID:   func() string { return "job-" + uuid.New().String() },
	}
}

// Enqueue appends a queued job with progress {0, len(prompts)*count}.
// Whether an artwork has been applied is the caller's concern.
func (q *JobQueue) Enqueue(req EnqueueRequest) (*domain.Job, error) {
	if len(req.Prompts) == 0 {
		return nil, ErrEmptyPrompts
	}
	if req.Count < 1 {
		return nil, ErrInvalidCount
	}

	used := make(map[string]bool, len(req.Prompts))
	for i, p := range req.Prompts {
		if strings.TrimSpace(p.Text) == "" {
			return nil, fmt.Errorf("prompt %d: %w", i+1, ErrEmptyPrompts)
		}
		if p.ID == "" {
			continue
		}
		if used[p.ID] {
			return nil, fmt.Errorf("prompt %d: %q: %w", i+1, p.ID, ErrDuplicatePrompt)
		}
		used[p.ID] = true
	}

	// Generated ids skip any id a caller already chose.
	prompts := make([]domain.Prompt, len(req.Prompts))
	next := 1
	for i, p := range req.Prompts {
		if p.ID == "" {
			for used[fmt.Sprintf("p%d", next)] {
				next++
			}
			p.ID = fmt.Sprintf("p%d", next)
			used[p.ID] = true
		}
		prompts[i] = p
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	job := &domain.Job{
		ID:          q.newID(),
		SKU:         req.SKU,
		ArtworkURL:  req.ArtworkURL,
		Prompts:     prompts,
		Count:       req.Count,
		AspectRatio: req.AspectRatio,
		Model:       req.Model,
		Status:      domain.JobStatusQueued,
		Progress:    domain.Progress{Done: 0, Total: len(prompts) * req.Count},
		Results:     []domain.LogEntry{},
		CreatedAt:   q.now(),
	}
	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)

	return job.Clone(), nil
}

// SelectNext returns the earliest queued job, or nil when nothing is queued
// or a job is already running. It does not mutate the queue.
func (q *JobQueue) SelectNext() *domain.Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var next *domain.Job
	for _, id := range q.order {
		job := q.jobs[id]
		switch job.Status {
		case domain.JobStatusRunning:
			return nil
		case domain.JobStatusQueued:
			if next == nil {
				next = job
			}
		}
	}
	return next.Clone()
}

// MarkRunning moves a queued job to running and stores its cancellation token.
// The caller must hold the single-flight lock.
func (q *JobQueue) MarkRunning(id string, cancel context.CancelFunc) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != domain.JobStatusQueued {
		return fmt.Errorf("mark %s running from %s: %w", id, job.Status, ErrInvalidState)
	}
	for _, other := range q.jobs {
		if other.Status == domain.JobStatusRunning {
			return fmt.Errorf("job %s is already running: %w", other.ID, ErrInvalidState)
		}
	}

	now := q.now()
	job.Status = domain.JobStatusRunning
	job.StartedAt = &now
	if cancel != nil {
		q.cancels[id] = cancel
	}
	return nil
}

// Cancel cancels a queued job immediately, or signals a running job's runner.
// A running job only becomes cancelled once its runner unwinds.
// Terminal jobs are left alone. The returned status is the one observed.
func (q *JobQueue) Cancel(id string) (domain.JobStatus, error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return "", ErrJobNotFound
	}

	status := job.Status
	var cancel context.CancelFunc
	switch status {
	case domain.JobStatusQueued:
		now := q.now()
		job.Status = domain.JobStatusCancelled
		job.FinishedAt = &now
		status = job.Status
	case domain.JobStatusRunning:
		cancel = q.cancels[id]
	}
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return status, nil
}

// ClearCompleted drops every job in a terminal state and returns how many were removed.
// Queued and running jobs keep their relative order.
func (q *JobQueue) ClearCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.order[:0]
	removed := 0
	for _, id := range q.order {
		if q.jobs[id].Status.IsTerminal() {
			delete(q.jobs, id)
			delete(q.cancels, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
	return removed
}

// RecordResult appends a task outcome to a running job and advances its progress.
func (q *JobQueue) RecordResult(id string, entry domain.LogEntry) (domain.Progress, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return domain.Progress{}, ErrJobNotFound
	}
	if job.Status != domain.JobStatusRunning {
		return job.Progress, fmt.Errorf("record result on %s job: %w", job.Status, ErrInvalidState)
	}
	if job.Progress.Done >= job.Progress.Total {
		return job.Progress, fmt.Errorf("job %s already has %d/%d results: %w",
			id, job.Progress.Done, job.Progress.Total, ErrInvalidState)
	}

	job.Results = append(job.Results, entry)
	job.Progress.Done++
	return job.Progress, nil
}

// Finish moves a running job to a terminal state and forgets its cancellation token.
// errMsg is only kept for the error state.
func (q *JobQueue) Finish(id string, status domain.JobStatus, errMsg string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finish with %s: %w", status, ErrInvalidState)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != domain.JobStatusRunning {
		return fmt.Errorf("finish %s job as %s: %w", job.Status, status, ErrInvalidState)
	}

	now := q.now()
	job.Status = status
	job.FinishedAt = &now
	if status == domain.JobStatusError {
		job.Error = errMsg
	}
	delete(q.cancels, id)
	return nil
}

// Get returns a snapshot of one job.
func (q *JobQueue) Get(id string) (*domain.Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// List returns snapshots of all jobs in insertion order.
func (q *JobQueue) List() []*domain.Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	jobs := make([]*domain.Job, 0, len(q.order))
	for _, id := range q.order {
		jobs = append(jobs, q.jobs[id].Clone())
	}
	return jobs
}

// Stats counts jobs per status.
func (q *JobQueue) Stats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var stats QueueStats
	for _, id := range q.order {
		stats.Total++
		switch q.jobs[id].Status {
		case domain.JobStatusQueued:
			stats.Queued++
		case domain.JobStatusRunning:
			stats.Running++
		case domain.JobStatusCompleted:
			stats.Completed++
		case domain.JobStatusCancelled:
			stats.Cancelled++
		case domain.JobStatusError:
			stats.Error++
		}
	}
	return stats
}

// Pending reports whether any job is still queued or running.
func (q *JobQueue) Pending() bool {
	stats := q.Stats()
	return stats.Queued+stats.Running > 0
}
