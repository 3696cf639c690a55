package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks a backing store
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and database checks
type HealthHandler struct {
	db     Pinger
	driver string
}

// NewHealthHandler creates a health handler. db may be nil for the memory driver.
func NewHealthHandler(db Pinger, driver string) *HealthHandler {
	return &HealthHandler{db: db, driver: driver}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Database handles GET /health/db
func (h *HealthHandler) Database(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "driver": h.driver})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"driver": h.driver,
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "driver": h.driver})
}
