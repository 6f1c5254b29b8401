package unsubscribe

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/ignite/sms-portal/internal/domain"
)

const (
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// maxTokenAttempts bounds the redraw loop. Collisions are vanishingly
	// rare (62^8 token space), so ten misses in a row means something is
	// badly wrong and we surface ErrTokenSpaceExhausted instead of
	// spinning.
	maxTokenAttempts = 10

	// defaultBackfillBatch caps how many contacts one backfill page loads.
	defaultBackfillBatch = 200
)

// Service issues short unsubscribe tokens and resolves them back to
// redirect targets. Safe for concurrent use; uniqueness is enforced by the
// repository's atomic insert, not by any in-process lock.
type Service struct {
	redirects RedirectRepository
	contacts  ContactLinkRepository
	signer    *Signer
	baseURL   string
	batchSize int
}

// NewService creates a token service. batchSize <= 0 falls back to the
// default of 200 contacts per backfill page.
func NewService(redirects RedirectRepository, contacts ContactLinkRepository, signer *Signer, baseURL string, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = defaultBackfillBatch
	}
	return &Service{
		redirects: redirects,
		contacts:  contacts,
		signer:    signer,
		baseURL:   trimSlash(baseURL),
		batchSize: batchSize,
	}
}

// Issue mints a collision-free token for the contact, persists the
// redirect binding it to the contact's current destination URL, and
// rewrites the contact's stored link to the short form. Returns the token.
func (s *Service) Issue(ctx context.Context, contact *domain.Contact) (string, error) {
	target := contact.UnsubscribeLink
	if target == "" || contact.HasShortLink() {
		// No legacy URL to preserve: the short link redirects to the
		// stateless signed confirmation URL.
		target = s.signer.LinkFor(contact.ID)
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := randomToken(domain.TokenLength)
		if err != nil {
			return "", fmt.Errorf("draw token: %w", err)
		}

		redirect := &domain.UnsubscribeRedirect{
			ID:        uuid.New().String(),
			ContactID: contact.ID,
			Token:     token,
			TargetURL: target,
		}
		inserted, err := s.redirects.InsertIfAbsent(ctx, redirect)
		if err != nil {
			return "", fmt.Errorf("persist redirect: %w", err)
		}
		if !inserted {
			// Collision: redraw.
			continue
		}

		link := fmt.Sprintf("%s/u/%s", s.baseURL, token)
		if err := s.contacts.SetUnsubscribeLink(ctx, contact.ID, link); err != nil {
			// Undo the insert so the next attempt for this contact does
			// not leave two live redirects behind.
			if delErr := s.redirects.Delete(ctx, redirect.ID); delErr != nil {
				log.Printf("[Unsubscribe] orphaned redirect %s for contact %s: %v", redirect.ID, contact.ID, delErr)
			}
			return "", fmt.Errorf("rewrite contact link: %w", err)
		}
		return token, nil
	}

	return "", ErrTokenSpaceExhausted
}

// Resolve returns the redirect target for a token, or ErrTokenNotFound.
func (s *Service) Resolve(ctx context.Context, token string) (string, error) {
	return s.redirects.Resolve(ctx, token)
}

// BackfillAll walks every contact still lacking a short-form link and
// issues a token for each, in bounded batches. Idempotent: contacts gain
// a short link when issued and drop out of the next page. Returns how many
// tokens were issued.
func (s *Service) BackfillAll(ctx context.Context) (int, error) {
	issued := 0
	for {
		batch, err := s.contacts.WithoutShortLink(ctx, s.batchSize)
		if err != nil {
			return issued, fmt.Errorf("load backfill batch: %w", err)
		}
		if len(batch) == 0 {
			return issued, nil
		}

		progressed := false
		for i := range batch {
			if _, err := s.Issue(ctx, &batch[i]); err != nil {
				log.Printf("[Unsubscribe] backfill: contact %s: %v", batch[i].ID, err)
				continue
			}
			issued++
			progressed = true
		}

		// Every contact in the batch failed: bail rather than reload the
		// same page forever.
		if !progressed {
			return issued, fmt.Errorf("backfill made no progress on a batch of %d", len(batch))
		}
	}
}

// randomToken draws n characters uniformly from the token alphabet using
// crypto/rand.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(out), nil
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
