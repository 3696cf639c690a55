package handlers

import (
	"encoding/json"
	"net/http"

	"caotun-spin-backend/internal/middleware"
	"caotun-spin-backend/internal/models"
	"caotun-spin-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles login and user settings
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// Login handles POST /api/v1/auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.userService.Login(r.Context(), &req)
	if err != nil {
		if errorStatus(err) == http.StatusInternalServerError {
			log.Error().Err(err).Str("device_id", req.DeviceID).Msg("Failed to log in")
		}
		respondServiceError(w, err, "Failed to log in")
		return
	}

	log.Info().
		Str("user_id", resp.User.ID).
		Str("device_id", req.DeviceID).
		Msg("User logged in")

	respondJSON(w, http.StatusOK, resp)
}

// PushTokenRequest represents the request body for registering a push token
type PushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// UpdatePushToken handles PUT /api/v1/users/me/push-token. An empty token unregisters.
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.UpdatePushToken(ctx, userID, req.PushToken); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to update push token")
		respondServiceError(w, err, "Failed to update push token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
