package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ignite/sms-portal/internal/domain"
)

// Outcome classifies what happened to one row.
type Outcome string

const (
	OutcomeImported Outcome = "imported"
	OutcomeSkipped  Outcome = "skipped"
)

// skippedSampleSize bounds how many skipped rows are retained for
// diagnostics. Large files can skip millions of rows; the counters carry
// the totals, the sample carries the flavor.
const skippedSampleSize = 5

// ContactStore is the persistence contract the reconciler upserts through.
// Upsert must be a single atomic write keyed by (audience_id, email) so
// concurrent imports into the same audience cannot lose updates.
type ContactStore interface {
	Upsert(ctx context.Context, c *domain.Contact) error
}

// SkippedRow is one diagnostic sample of a row that was not imported.
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Reconciler upserts mapped rows into the contact store and keeps the
// outcome accounting for one import run. Not safe for concurrent use; each
// run owns its own Reconciler.
type Reconciler struct {
	store    ContactStore
	now      func() time.Time
	imported int
	skipped  int
	sample   []SkippedRow
}

// NewReconciler creates a reconciler for a single import run.
func NewReconciler(store ContactStore) *Reconciler {
	return &Reconciler{store: store, now: time.Now}
}

// Reconcile validates and upserts one mapped row. Storage failures are
// logged, counted as skipped, and never abort the run: partial progress
// must survive a single bad row.
func (r *Reconciler) Reconcile(ctx context.Context, audienceID string, line int, rec *Record) Outcome {
	if !ValidEmail(rec.Email) {
		r.Skip(line, fmt.Sprintf("invalid email %q", rec.Email))
		return OutcomeSkipped
	}

	contact := &domain.Contact{
		AudienceID:      audienceID,
		Email:           rec.Email,
		FirstName:       rec.FirstName,
		LastName:        rec.LastName,
		Phone:           rec.Phone,
		State:           rec.State,
		BusinessName:    rec.BusinessName,
		BusinessAddress: rec.BusinessAddress,
		Tags:            rec.Tags,
		Raw:             rec.Raw,
		SyncedAt:        r.now(),
	}

	if err := r.store.Upsert(ctx, contact); err != nil {
		log.Printf("[Reconciler] line %d: upsert %s failed: %v", line, contact.DedupEmail(), err)
		r.Skip(line, fmt.Sprintf("storage: %v", err))
		return OutcomeSkipped
	}

	r.imported++
	return OutcomeImported
}

// Skip records a row that was not imported, keeping the first few for
// diagnostics.
func (r *Reconciler) Skip(line int, reason string) {
	r.skipped++
	if len(r.sample) < skippedSampleSize {
		r.sample = append(r.sample, SkippedRow{Line: line, Reason: reason})
	}
}

// Imported returns the number of rows upserted so far.
func (r *Reconciler) Imported() int { return r.imported }

// Skipped returns the number of rows skipped so far.
func (r *Reconciler) Skipped() int { return r.skipped }

// SkippedSample returns up to the first five skipped rows.
func (r *Reconciler) SkippedSample() []SkippedRow { return r.sample }
