package imports

import (
	"context"

	"github.com/ignite/sms-portal/internal/domain"
)

// TaskRepository defines the data access contract for import tasks.
type TaskRepository interface {
	// Create inserts a new task in the queued state.
	Create(ctx context.Context, task *domain.ImportTask) error

	// Get returns a task by id. Returns ErrTaskNotFound if missing.
	Get(ctx context.Context, id string) (*domain.ImportTask, error)

	// Claim atomically flips the oldest queued task to processing, stamping
	// started_at and the claiming worker's id. Returns ErrNoTaskAvailable
	// when nothing is queued. Two concurrent claimers can never receive the
	// same task.
	Claim(ctx context.Context, workerID string) (*domain.ImportTask, error)

	// Complete finalizes a task as completed with its counters.
	Complete(ctx context.Context, id string, imported, skipped int) error

	// Fail finalizes a task as failed with a descriptive message.
	Fail(ctx context.Context, id, message string) error
}

// LogRepository defines the data access contract for the append-only
// import log.
type LogRepository interface {
	// Append writes one log entry for a completed run.
	Append(ctx context.Context, entry *domain.ImportLog) error

	// List returns entries newest-first with the total count.
	List(ctx context.Context, limit, offset int) ([]domain.ImportLog, int, error)
}
