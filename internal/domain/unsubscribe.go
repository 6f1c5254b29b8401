package domain

import "time"

// TokenLength is the fixed length of a short unsubscribe token.
const TokenLength = 8

// UnsubscribeRedirect binds an opaque short token to a contact and a
// destination URL. Tokens are unique across the table, immutable once
// issued, and permanently resolvable.
type UnsubscribeRedirect struct {
	ID        string    `json:"id" db:"id"`
	ContactID string    `json:"contact_id" db:"contact_id"`
	Token     string    `json:"token" db:"token"`
	TargetURL string    `json:"target_url" db:"target_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
