package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/sms-portal/internal/domain"
	"github.com/lib/pq"
)

// ContactRepo implements ingest.ContactStore and
// unsubscribe.ContactLinkRepository against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

// Upsert writes one contact keyed by (audience_id, lower(email)) in a
// single atomic statement. Re-imports replace the record in place:
// last write wins.
func (r *ContactRepo) Upsert(ctx context.Context, c *domain.Contact) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	rawJSON, err := json.Marshal(c.Raw)
	if err != nil {
		return fmt.Errorf("marshal raw payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO crm_contacts (
			id, audience_id, email, first_name, last_name, phone, state,
			business_name, business_address, tags, raw, synced_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (audience_id, lower(email)) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			state = EXCLUDED.state,
			business_name = EXCLUDED.business_name,
			business_address = EXCLUDED.business_address,
			tags = EXCLUDED.tags,
			raw = EXCLUDED.raw,
			synced_at = EXCLUDED.synced_at,
			updated_at = NOW()
	`, c.ID, c.AudienceID, c.Email, c.FirstName, c.LastName, c.Phone, c.State,
		c.BusinessName, c.BusinessAddress, pq.Array(c.Tags), rawJSON, c.SyncedAt)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

// WithoutShortLink returns contacts whose stored unsubscribe link is not
// the short form, oldest first, up to limit.
func (r *ContactRepo) WithoutShortLink(ctx context.Context, limit int) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, audience_id, email, COALESCE(unsubscribe_link, '')
		FROM crm_contacts
		WHERE unsubscribe_link IS NULL OR unsubscribe_link NOT LIKE '%/u/%'
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("contacts without short link: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.AudienceID, &c.Email, &c.UnsubscribeLink); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetUnsubscribeLink rewrites a contact's stored link field.
func (r *ContactRepo) SetUnsubscribeLink(ctx context.Context, contactID, link string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE crm_contacts SET unsubscribe_link = $2, updated_at = NOW() WHERE id = $1`,
		contactID, link,
	)
	if err != nil {
		return fmt.Errorf("set unsubscribe link: %w", err)
	}
	return nil
}

// CountByAudience returns how many contacts an audience holds.
func (r *ContactRepo) CountByAudience(ctx context.Context, audienceID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM crm_contacts WHERE audience_id = $1`,
		audienceID,
	).Scan(&n)
	return n, err
}
