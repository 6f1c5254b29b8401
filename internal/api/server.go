package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/sms-portal/internal/service/imports"
	"github.com/ignite/sms-portal/internal/service/unsubscribe"
)

// Handlers bundles the HTTP handlers and their dependencies.
type Handlers struct {
	imports   *imports.Service
	unsub     *unsubscribe.Service
	signer    *unsubscribe.Signer
	db        *sql.DB
	redis     *redis.Client
	startTime time.Time
}

// NewHandlers creates the handler set. db and redis may be nil; the
// health check reports them as not configured.
func NewHandlers(
	importsSvc *imports.Service,
	unsubSvc *unsubscribe.Service,
	signer *unsubscribe.Signer,
	db *sql.DB,
	redisClient *redis.Client,
) *Handlers {
	return &Handlers{
		imports:   importsSvc,
		unsub:     unsubSvc,
		signer:    signer,
		db:        db,
		redis:     redisClient,
		startTime: time.Now(),
	}
}

// HealthCheck reports liveness plus the state of the backing stores.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			checks["database"] = "down"
		} else {
			checks["database"] = "up"
		}
	} else {
		checks["database"] = "not_configured"
	}

	if h.redis != nil {
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			checks["redis"] = "down"
		} else {
			checks["redis"] = "up"
		}
	} else {
		checks["redis"] = "not_configured"
	}

	status := "healthy"
	for _, c := range checks {
		if c == "down" {
			status = "degraded"
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
		"checks": checks,
	})
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
