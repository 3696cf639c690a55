package handlers

import (
	"net/http"
	"net/url"

	"caotun-spin-backend/internal/middleware"
	"caotun-spin-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// CouponHandler handles the player's wheel, check-ins and wallet
type CouponHandler struct {
	couponService  *services.CouponService
	spinService    *services.SpinService
	checkInService *services.CheckInService
}

// NewCouponHandler creates a new coupon handler
func NewCouponHandler(
	couponService *services.CouponService,
	spinService *services.SpinService,
	checkInService *services.CheckInService,
) *CouponHandler {
	return &CouponHandler{
		couponService:  couponService,
		spinService:    spinService,
		checkInService: checkInService,
	}
}

// ListCoupons handles GET /api/v1/coupons
func (h *CouponHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	coupons, err := h.couponService.ListCoupons(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list coupons")
		respondError(w, "Failed to list coupons", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"coupons": coupons,
	})
}

// ShareCoupon handles GET /api/v1/coupons/{coupon_id}/share
func (h *CouponHandler) ShareCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	couponID := chi.URLParam(r, "coupon_id")

	payload, err := h.couponService.ShareCoupon(ctx, userID, couponID, pageURL(r))
	if err != nil {
		if errorStatus(err) == http.StatusInternalServerError {
			log.Error().Err(err).Str("user_id", userID).Str("coupon_id", couponID).Msg("Failed to share coupon")
		}
		respondServiceError(w, err, "Failed to share coupon")
		return
	}

	respondJSON(w, http.StatusOK, payload)
}

// Spin handles POST /api/v1/spins
func (h *CouponHandler) Spin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	result, err := h.spinService.Spin(ctx, userID)
	if err != nil {
		if errorStatus(err) == http.StatusInternalServerError {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to spin")
		}
		respondServiceError(w, err, "Failed to spin")
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// CheckIn handles POST /api/v1/check-ins
func (h *CouponHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	result, err := h.checkInService.CheckIn(ctx, userID)
	if err != nil {
		if errorStatus(err) == http.StatusInternalServerError {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to check in")
		}
		respondServiceError(w, err, "Failed to check in")
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// pageURL is the link shared alongside the text: the ?url= parameter, the Origin header,
// or the root of the host serving the request
func pageURL(r *http.Request) string {
	if u := r.URL.Query().Get("url"); u != "" {
		if parsed, err := url.Parse(u); err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https") {
			return u
		}
	}
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
