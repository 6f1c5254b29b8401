package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/sms-portal/internal/domain"
	"github.com/ignite/sms-portal/internal/service/imports"
)

// ImportTaskRepo implements imports.TaskRepository against PostgreSQL.
type ImportTaskRepo struct{ db *sql.DB }

// NewImportTaskRepo creates a Postgres-backed import task repository.
func NewImportTaskRepo(db *sql.DB) *ImportTaskRepo { return &ImportTaskRepo{db: db} }

func (r *ImportTaskRepo) Create(ctx context.Context, t *domain.ImportTask) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO crm_import_tasks (id, audience_id, filename, file_key, status, queued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.AudienceID, t.Filename, t.FileKey, t.Status, t.QueuedAt)
	if err != nil {
		return fmt.Errorf("create import task: %w", err)
	}
	return nil
}

func (r *ImportTaskRepo) Get(ctx context.Context, id string) (*domain.ImportTask, error) {
	var t domain.ImportTask
	var workerID, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, audience_id, filename, file_key, status, worker_id,
		       imported_count, skipped_count, error_message,
		       queued_at, started_at, completed_at
		FROM crm_import_tasks
		WHERE id = $1
	`, id).Scan(
		&t.ID, &t.AudienceID, &t.Filename, &t.FileKey, &t.Status, &workerID,
		&t.ImportedCount, &t.SkippedCount, &errMsg,
		&t.QueuedAt, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, imports.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import task: %w", err)
	}
	t.WorkerID = workerID.String
	t.ErrorMessage = errMsg.String
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

// Claim flips the oldest queued task to processing in one atomic
// statement. FOR UPDATE SKIP LOCKED guarantees two concurrent claimers
// never receive the same task.
func (r *ImportTaskRepo) Claim(ctx context.Context, workerID string) (*domain.ImportTask, error) {
	var t domain.ImportTask
	var startedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		UPDATE crm_import_tasks
		SET status = 'processing', worker_id = $1, started_at = NOW()
		WHERE id = (
			SELECT id FROM crm_import_tasks
			WHERE status = 'queued'
			ORDER BY queued_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, audience_id, filename, file_key, status, queued_at, started_at
	`, workerID).Scan(
		&t.ID, &t.AudienceID, &t.Filename, &t.FileKey, &t.Status, &t.QueuedAt, &startedAt,
	)
	if err == sql.ErrNoRows {
		return nil, imports.ErrNoTaskAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("claim import task: %w", err)
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	t.WorkerID = workerID
	return &t, nil
}

// Complete finalizes a task as completed. The status guard preserves the
// terminal-state invariant: completed and failed are never overwritten.
func (r *ImportTaskRepo) Complete(ctx context.Context, id string, imported, skipped int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE crm_import_tasks
		SET status = 'completed', imported_count = $2, skipped_count = $3, completed_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, id, imported, skipped)
	if err != nil {
		return fmt.Errorf("complete import task: %w", err)
	}
	return nil
}

// Fail finalizes a task as failed with a descriptive message.
func (r *ImportTaskRepo) Fail(ctx context.Context, id, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE crm_import_tasks
		SET status = 'failed', error_message = $2, completed_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`, id, message)
	if err != nil {
		return fmt.Errorf("fail import task: %w", err)
	}
	return nil
}

// ImportLogRepo implements imports.LogRepository against PostgreSQL.
type ImportLogRepo struct{ db *sql.DB }

// NewImportLogRepo creates a Postgres-backed import log repository.
func NewImportLogRepo(db *sql.DB) *ImportLogRepo { return &ImportLogRepo{db: db} }

func (r *ImportLogRepo) Append(ctx context.Context, e *domain.ImportLog) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO crm_import_logs (id, filename, audience_id, imported_count, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, e.ID, e.Filename, e.AudienceID, e.ImportedCount, e.Summary)
	if err != nil {
		return fmt.Errorf("append import log: %w", err)
	}
	return nil
}

func (r *ImportLogRepo) List(ctx context.Context, limit, offset int) ([]domain.ImportLog, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM crm_import_logs`,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count import logs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, filename, audience_id, imported_count, summary, created_at
		FROM crm_import_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list import logs: %w", err)
	}
	defer rows.Close()

	var out []domain.ImportLog
	for rows.Next() {
		var e domain.ImportLog
		if err := rows.Scan(&e.ID, &e.Filename, &e.AudienceID, &e.ImportedCount, &e.Summary, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan import log: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
