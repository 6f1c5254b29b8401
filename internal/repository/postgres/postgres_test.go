package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sms-portal/internal/domain"
	"github.com/ignite/sms-portal/internal/service/imports"
	"github.com/ignite/sms-portal/internal/service/unsubscribe"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestContactUpsertAssignsID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContactRepo(db)

	mock.ExpectExec(`INSERT INTO crm_contacts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c := &domain.Contact{
		AudienceID: "aud-1",
		Email:      "Jane@Example.com",
		Raw:        map[string]string{"Email": "Jane@Example.com"},
		SyncedAt:   time.Now(),
	}
	err := repo.Upsert(context.Background(), c)
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID, "upsert should assign an id when missing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportTaskClaimEmptyQueue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImportTaskRepo(db)

	mock.ExpectQuery(`UPDATE crm_import_tasks`).
		WithArgs("worker-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Claim(context.Background(), "worker-1")
	assert.ErrorIs(t, err, imports.ErrNoTaskAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportTaskClaim(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImportTaskRepo(db)

	queued := time.Now().Add(-time.Minute)
	started := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "audience_id", "filename", "file_key", "status", "queued_at", "started_at",
	}).AddRow("task-1", "aud-1", "list.csv", "imports/task-1.csv", "processing", queued, started)

	mock.ExpectQuery(`UPDATE crm_import_tasks`).
		WithArgs("worker-1").
		WillReturnRows(rows)

	task, err := repo.Claim(context.Background(), "worker-1")
	require.NoError(t, err)
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, domain.ImportProcessing, task.Status)
	assert.Equal(t, "worker-1", task.WorkerID)
	require.NotNil(t, task.StartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportTaskGetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImportTaskRepo(db)

	mock.ExpectQuery(`SELECT .+ FROM crm_import_tasks`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, imports.ErrTaskNotFound)
}

func TestRedirectInsertIfAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRedirectRepo(db)

	red := &domain.UnsubscribeRedirect{
		ID:        "red-1",
		ContactID: "contact-1",
		Token:     "aB3xY9Qz",
		TargetURL: "https://example.com/legacy?id=contact-1",
	}

	mock.ExpectExec(`INSERT INTO crm_unsubscribe_redirects`).
		WithArgs(red.ID, red.ContactID, red.Token, red.TargetURL).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.InsertIfAbsent(context.Background(), red)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second insert with the same token hits ON CONFLICT DO NOTHING.
	mock.ExpectExec(`INSERT INTO crm_unsubscribe_redirects`).
		WithArgs("red-2", "contact-2", red.Token, "https://example.com/other").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.InsertIfAbsent(context.Background(), &domain.UnsubscribeRedirect{
		ID: "red-2", ContactID: "contact-2", Token: red.Token,
		TargetURL: "https://example.com/other",
	})
	require.NoError(t, err)
	assert.False(t, ok, "conflicting token must report the slot as taken")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedirectDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRedirectRepo(db)

	mock.ExpectExec(`DELETE FROM crm_unsubscribe_redirects`).
		WithArgs("red-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "red-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedirectResolveNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRedirectRepo(db)

	mock.ExpectQuery(`SELECT target_url FROM crm_unsubscribe_redirects`).
		WithArgs("nope1234").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Resolve(context.Background(), "nope1234")
	assert.ErrorIs(t, err, unsubscribe.ErrTokenNotFound)
}
