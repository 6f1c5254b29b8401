package unsubscribe

import (
	"context"

	"github.com/ignite/sms-portal/internal/domain"
)

// RedirectRepository defines the data access contract for token redirects.
type RedirectRepository interface {
	// InsertIfAbsent persists the redirect only if its token is free.
	// Returns false (and no error) when the token already exists. The
	// check-and-insert must be atomic: two concurrent issuances must never
	// both persist the same token.
	InsertIfAbsent(ctx context.Context, r *domain.UnsubscribeRedirect) (bool, error)

	// Resolve returns the target URL for a token, or ErrTokenNotFound.
	Resolve(ctx context.Context, token string) (string, error)

	// Delete removes a redirect by id. Used to undo an insert whose
	// contact rewrite failed, so no orphaned redirect survives.
	Delete(ctx context.Context, id string) error
}

// ContactLinkRepository is the slice of the contact store the token
// service needs: finding contacts still lacking a short-form link and
// rewriting a contact's stored link.
type ContactLinkRepository interface {
	// WithoutShortLink returns up to limit contacts whose stored
	// unsubscribe link is not short-form (legacy raw URL or empty).
	WithoutShortLink(ctx context.Context, limit int) ([]domain.Contact, error)

	// SetUnsubscribeLink rewrites a contact's stored link field.
	SetUnsubscribeLink(ctx context.Context, contactID, link string) error
}
