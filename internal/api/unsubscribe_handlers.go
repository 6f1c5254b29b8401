package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/sms-portal/internal/service/unsubscribe"
)

// HandleShortUnsubscribe resolves a short token and redirects to its
// permanent target. Unknown tokens get a 404, never a guess.
//
//	GET /u/{token}
func (h *Handlers) HandleShortUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	target, err := h.unsub.Resolve(r.Context(), token)
	if err == unsubscribe.ErrTokenNotFound {
		respondError(w, http.StatusNotFound, "unknown unsubscribe link")
		return
	}
	if err != nil {
		log.Printf("[API] token resolution failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to resolve link")
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// HandleSignedUnsubscribe verifies a signed legacy unsubscribe link.
// Anything but an exact signature match is treated as an unknown link.
//
//	GET /v1/unsubscribe/{contactID}/{signature}
func (h *Handlers) HandleSignedUnsubscribe(w http.ResponseWriter, r *http.Request) {
	contactID := chi.URLParam(r, "contactID")
	signature := chi.URLParam(r, "signature")

	if !h.signer.Verify(contactID, signature) {
		respondError(w, http.StatusNotFound, "unknown unsubscribe link")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":     "unsubscribed",
		"contact_id": contactID,
	})
}

// HandleBackfill issues short tokens for every contact still carrying a
// legacy or empty unsubscribe link.
//
//	POST /api/unsubscribe/backfill
func (h *Handlers) HandleBackfill(w http.ResponseWriter, r *http.Request) {
	updated, err := h.unsub.BackfillAll(r.Context())
	if err != nil {
		log.Printf("[API] unsubscribe backfill failed after %d contacts: %v", updated, err)
		respondError(w, http.StatusInternalServerError, "backfill failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"updated": updated,
	})
}
