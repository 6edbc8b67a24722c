package domain

import "time"

// EntryType classifies a generation log entry.
type EntryType string

const (
	EntryTypeArtwork EntryType = "artwork"
	EntryTypeMockup  EntryType = "mockup"
)

// LogEntry is the recorded outcome of one generation task.
// DataURL is empty when the task failed; Error is empty when it succeeded.
type LogEntry struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	Type      EntryType `gorm:"type:text;not null;index:idx_generation_log_type" json:"type"`
	Prompt    string    `gorm:"type:text" json:"prompt"`
	DataURL   string    `gorm:"column:data_url;type:text" json:"data_url"`
	PublicID  string    `gorm:"type:text" json:"public_id,omitempty"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	OwnerUID  string    `gorm:"type:text;index:idx_generation_log_owner" json:"owner_uid,omitempty"`
	JobID     string    `gorm:"type:text;index:idx_generation_log_job" json:"job_id,omitempty"`
	CreatedAt time.Time `gorm:"index:idx_generation_log_created" json:"created_at"`
}

// TableName returns the database table name for LogEntry.
func (LogEntry) TableName() string {
	return "generation_log"
}

// Failed reports whether the task that produced this entry failed.
func (e LogEntry) Failed() bool {
	return e.Error != ""
}
