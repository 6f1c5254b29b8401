package domain

import "time"

// ImportStatus enumerates the lifecycle states of a contact import task.
type ImportStatus string

const (
	ImportQueued     ImportStatus = "queued"
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
)

// Terminal reports whether the status is final. No transition ever leaves
// a terminal state.
func (s ImportStatus) Terminal() bool {
	return s == ImportCompleted || s == ImportFailed
}

// ImportTask tracks one background file import from submission to
// completion. Created queued by the submission API, claimed and advanced
// only by the worker that owns it.
type ImportTask struct {
	ID            string       `json:"id" db:"id"`
	AudienceID    string       `json:"audience_id" db:"audience_id"`
	Filename      string       `json:"filename" db:"filename"`
	FileKey       string       `json:"file_key" db:"file_key"`
	Status        ImportStatus `json:"status" db:"status"`
	WorkerID      string       `json:"worker_id,omitempty" db:"worker_id"`
	ImportedCount int          `json:"imported_count" db:"imported_count"`
	SkippedCount  int          `json:"skipped_count" db:"skipped_count"`
	ErrorMessage  string       `json:"error_message,omitempty" db:"error_message"`
	QueuedAt      time.Time    `json:"queued_at" db:"queued_at"`
	StartedAt     *time.Time   `json:"started_at,omitempty" db:"started_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
}

// ImportLog is the append-only audit record of one completed import run.
// Written once when a task completes, never mutated.
type ImportLog struct {
	ID            string    `json:"id" db:"id"`
	Filename      string    `json:"filename" db:"filename"`
	AudienceID    string    `json:"audience_id" db:"audience_id"`
	ImportedCount int       `json:"imported_count" db:"imported_count"`
	Summary       string    `json:"summary" db:"summary"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
