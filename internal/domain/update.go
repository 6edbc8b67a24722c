package domain

import "time"

// UpdateKind tells subscribers what changed in a JobUpdate.
type UpdateKind string

const (
	UpdateKindStatus   UpdateKind = "status"
	UpdateKindProgress UpdateKind = "progress"
)

// JobUpdate is a single observable change of a job, published after every task
// and on every status transition.
type JobUpdate struct {
	Kind     UpdateKind `json:"kind"`
	JobID    string     `json:"job_id"`
	Status   JobStatus  `json:"status"`
	Progress Progress   `json:"progress"`
	Entry    *LogEntry  `json:"entry,omitempty"`
	Error    string     `json:"error,omitempty"`
	At       time.Time  `json:"at"`
}
