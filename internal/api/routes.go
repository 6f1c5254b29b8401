package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router. Public redirect endpoints live at
// the root so short links stay short; everything operational sits under
// /api.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	// Public unsubscribe surface, linked from outbound messages.
	r.Get("/u/{token}", h.HandleShortUnsubscribe)
	r.Get("/v1/unsubscribe/{contactID}/{signature}", h.HandleSignedUnsubscribe)

	r.Route("/api", func(r chi.Router) {
		r.Post("/imports", h.HandleSubmitImport)
		r.Get("/imports/logs", h.HandleImportLogs)
		r.Get("/imports/{taskID}", h.HandleImportStatus)
		r.Post("/unsubscribe/backfill", h.HandleBackfill)
	})

	return r
}
