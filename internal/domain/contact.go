package domain

import (
	"strings"
	"time"
)

// Contact is the reconciled record representing one real-world contact
// within an audience. At most one Contact exists per (audience_id, email);
// email is stored case-preserved but deduplicated case-insensitively.
type Contact struct {
	ID              string            `json:"id" db:"id"`
	AudienceID      string            `json:"audience_id" db:"audience_id"`
	Email           string            `json:"email" db:"email"`
	FirstName       string            `json:"first_name,omitempty" db:"first_name"`
	LastName        string            `json:"last_name,omitempty" db:"last_name"`
	Phone           string            `json:"phone,omitempty" db:"phone"`
	State           string            `json:"state,omitempty" db:"state"`
	BusinessName    string            `json:"business_name,omitempty" db:"business_name"`
	BusinessAddress string            `json:"business_address,omitempty" db:"business_address"`
	Tags            []string          `json:"tags,omitempty" db:"tags"`
	UnsubscribeLink string            `json:"unsubscribe_link,omitempty" db:"unsubscribe_link"`
	Raw             map[string]string `json:"raw,omitempty" db:"raw"`
	SyncedAt        time.Time         `json:"synced_at" db:"synced_at"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// DedupEmail returns the email form used for identity matching.
func (c *Contact) DedupEmail() string {
	return strings.ToLower(strings.TrimSpace(c.Email))
}

// HasShortLink reports whether the contact already carries a short-form
// unsubscribe link (as opposed to a raw legacy URL or nothing at all).
func (c *Contact) HasShortLink() bool {
	return strings.Contains(c.UnsubscribeLink, "/u/")
}
