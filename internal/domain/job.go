package domain

import "time"

// JobStatus represents the lifecycle state of a batch job.
// A job moves queued -> running -> completed|cancelled|error, or directly
// queued -> cancelled. Terminal states are never left.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusError     JobStatus = "error"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCancelled, JobStatusError:
		return true
	}
	return false
}

// Prompt is one mockup prompt inside a job.
type Prompt struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"prompt" yaml:"prompt"`
}

// Progress counts processed tasks. Total is fixed when the job is created.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Job is a user-submitted batch of mockup generations against one artwork.
type Job struct {
	ID          string     `json:"id"`
	SKU         string     `json:"sku"`
	ArtworkURL  string     `json:"artwork_url"`
	Prompts     []Prompt   `json:"prompts"`
	Count       int        `json:"count"`
	AspectRatio string     `json:"aspect_ratio"`
	Model       string     `json:"model,omitempty"`
	Status      JobStatus  `json:"status"`
	Progress    Progress   `json:"progress"`
	Results     []LogEntry `json:"results"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Clone returns a deep copy that is safe to hand out while the original keeps mutating.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Prompts = append([]Prompt(nil), j.Prompts...)
	c.Results = append(make([]LogEntry, 0, len(j.Results)), j.Results...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// FailedResults returns how many recorded results carry an error.
func (j *Job) FailedResults() int {
	n := 0
	for _, r := range j.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}
