package handlers

import (
	"encoding/json"
	"net/http"

	"caotun-spin-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// MerchantHandler handles merchant portal requests
type MerchantHandler struct {
	merchantService *services.MerchantService
	couponService   *services.CouponService
}

// NewMerchantHandler creates a new merchant handler
func NewMerchantHandler(merchantService *services.MerchantService, couponService *services.CouponService) *MerchantHandler {
	return &MerchantHandler{
		merchantService: merchantService,
		couponService:   couponService,
	}
}

// CreateRestaurant handles POST /api/v1/merchant/restaurants
func (h *MerchantHandler) CreateRestaurant(w http.ResponseWriter, r *http.Request) {
	var req services.CreateRestaurantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	restaurant, err := h.merchantService.CreateRestaurant(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create restaurant")
		respondServiceError(w, err, "Failed to create restaurant")
		return
	}

	log.Info().
		Str("restaurant_id", restaurant.ID).
		Str("name", restaurant.Name).
		Msg("Restaurant created")

	respondJSON(w, http.StatusCreated, restaurant)
}

// ListRestaurants handles GET /api/v1/merchant/restaurants
func (h *MerchantHandler) ListRestaurants(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.merchantService.ListRestaurants(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list restaurants")
		respondError(w, "Failed to list restaurants", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"restaurants": restaurants,
	})
}

// GetRestaurant handles GET /api/v1/merchant/restaurants/{restaurant_id}
func (h *MerchantHandler) GetRestaurant(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurant_id")

	restaurant, err := h.merchantService.GetRestaurant(r.Context(), restaurantID)
	if err != nil {
		respondServiceError(w, err, "Failed to get restaurant")
		return
	}

	respondJSON(w, http.StatusOK, restaurant)
}

// CreateTemplate handles POST /api/v1/merchant/restaurants/{restaurant_id}/templates
func (h *MerchantHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurant_id")

	var req services.CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	template, err := h.merchantService.CreateTemplate(r.Context(), restaurantID, req)
	if err != nil {
		log.Error().Err(err).Str("restaurant_id", restaurantID).Msg("Failed to create coupon template")
		respondServiceError(w, err, "Failed to create coupon template")
		return
	}

	respondJSON(w, http.StatusCreated, template)
}

// ListTemplates handles GET /api/v1/merchant/restaurants/{restaurant_id}/templates
func (h *MerchantHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurant_id")

	templates, err := h.merchantService.ListTemplates(r.Context(), restaurantID)
	if err != nil {
		respondServiceError(w, err, "Failed to list coupon templates")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
	})
}

// RequestImageUpload handles POST /api/v1/merchant/restaurants/{restaurant_id}/image
func (h *MerchantHandler) RequestImageUpload(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurant_id")

	var req services.ImageUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.merchantService.RequestImageUpload(r.Context(), restaurantID, req)
	if err != nil {
		log.Error().Err(err).Str("restaurant_id", restaurantID).Msg("Failed to get pre-signed URL")
		respondServiceError(w, err, "Failed to get upload URL")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// RedeemRequest represents the request body for redeeming a coupon
type RedeemRequest struct {
	Code string `json:"code"`
}

// RedeemCoupon handles POST /api/v1/merchant/restaurants/{restaurant_id}/redeem
func (h *MerchantHandler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurant_id")

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Code == "" {
		respondError(w, "code is required", http.StatusBadRequest)
		return
	}

	coupon, err := h.couponService.RedeemCoupon(r.Context(), restaurantID, req.Code)
	if err != nil {
		log.Warn().Err(err).Str("restaurant_id", restaurantID).Msg("Coupon redemption rejected")
		respondServiceError(w, err, "Failed to redeem coupon")
		return
	}

	respondJSON(w, http.StatusOK, coupon)
}
