package handlers

import (
	"net/http"

	"caotun-spin-backend/internal/offline"
	"caotun-spin-backend/internal/services"
)

// MealPeriodHandler serves the meal-period schedule and the offline manifest
type MealPeriodHandler struct {
	resolver *services.MealPeriodResolver
	manifest offline.Manifest
}

// NewMealPeriodHandler creates a new meal period handler
func NewMealPeriodHandler(resolver *services.MealPeriodResolver, cacheVersion string) *MealPeriodHandler {
	return &MealPeriodHandler{
		resolver: resolver,
		manifest: offline.NewManifest(cacheVersion),
	}
}

// Current handles GET /api/v1/meal-period
func (h *MealPeriodHandler) Current(w http.ResponseWriter, r *http.Request) {
	status := h.resolver.Status()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"active":      status.Active,
		"period":      status.Period,
		"date":        status.Date,
		"server_time": status.ServerTime,
		"schedule":    h.resolver.Schedule(),
	})
}

// OfflineManifest handles GET /api/v1/offline/manifest
func (h *MealPeriodHandler) OfflineManifest(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manifest)
}
