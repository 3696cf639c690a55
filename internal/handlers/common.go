package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"caotun-spin-backend/internal/repository"
	"caotun-spin-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// errorStatus maps domain errors to HTTP status codes
func errorStatus(err error) int {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, services.ErrContactRequired),
		errors.Is(err, services.ErrInvalidPhone),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrDeviceRequired):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrAlreadySpun),
		errors.Is(err, repository.ErrAlreadyCheckedIn),
		errors.Is(err, repository.ErrDuplicateContact),
		errors.Is(err, services.ErrCouponRedeemed):
		return http.StatusConflict
	case errors.Is(err, services.ErrNoActivePeriod),
		errors.Is(err, services.ErrCouponNotOwned):
		return http.StatusForbidden
	case errors.Is(err, services.ErrCouponExpired):
		return http.StatusGone
	case errors.Is(err, services.ErrNoPrizes),
		errors.Is(err, services.ErrUploadsDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err with its mapped status. Internal errors are not echoed.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		respondError(w, fallback, status)
		return
	}
	respondError(w, err.Error(), status)
}
