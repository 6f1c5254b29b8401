package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/sms-portal/internal/domain"
	"github.com/ignite/sms-portal/internal/service/unsubscribe"
)

// RedirectRepo implements unsubscribe.RedirectRepository against PostgreSQL.
type RedirectRepo struct{ db *sql.DB }

// NewRedirectRepo creates a Postgres-backed redirect repository.
func NewRedirectRepo(db *sql.DB) *RedirectRepo { return &RedirectRepo{db: db} }

// InsertIfAbsent reserves the token atomically. ON CONFLICT DO NOTHING
// makes the unique index on token the single arbiter under concurrency:
// exactly one inserter observes a row count of 1.
func (r *RedirectRepo) InsertIfAbsent(ctx context.Context, red *domain.UnsubscribeRedirect) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO crm_unsubscribe_redirects (id, contact_id, token, target_url, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (token) DO NOTHING
	`, red.ID, red.ContactID, red.Token, red.TargetURL)
	if err != nil {
		return false, fmt.Errorf("insert redirect: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert redirect rows: %w", err)
	}
	return n == 1, nil
}

func (r *RedirectRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM crm_unsubscribe_redirects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete redirect: %w", err)
	}
	return nil
}

func (r *RedirectRepo) Resolve(ctx context.Context, token string) (string, error) {
	var target string
	err := r.db.QueryRowContext(ctx,
		`SELECT target_url FROM crm_unsubscribe_redirects WHERE token = $1`,
		token,
	).Scan(&target)
	if err == sql.ErrNoRows {
		return "", unsubscribe.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve redirect token: %w", err)
	}
	return target, nil
}
