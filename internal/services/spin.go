package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"caotun-spin-backend/internal/metrics"
	"caotun-spin-backend/internal/models"
	"caotun-spin-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoActivePeriod = errors.New("no meal period is open")
	ErrNoPrizes       = errors.New("no coupon templates available")
)

// SpinResult is what the wheel landed on
type SpinResult struct {
	MealPeriod models.MealPeriod `json:"meal_period"`
	Coupon     CouponView        `json:"coupon"`
}

// SpinService runs the wheel
type SpinService struct {
	couponRepo     repository.CouponStore
	restaurantRepo repository.RestaurantStore
	resolver       *MealPeriodResolver
	coupons        *CouponService
	now            Clock
}

// NewSpinService creates a new spin service
func NewSpinService(
	couponRepo repository.CouponStore,
	restaurantRepo repository.RestaurantStore,
	resolver *MealPeriodResolver,
	coupons *CouponService,
	now Clock,
) *SpinService {
	if now == nil {
		now = time.Now
	}
	return &SpinService{
		couponRepo:     couponRepo,
		restaurantRepo: restaurantRepo,
		resolver:       resolver,
		coupons:        coupons,
		now:            now,
	}
}

// Spin draws a prize for the current meal period. A user gets one spin per period per day.
func (s *SpinService) Spin(ctx context.Context, userID string) (*SpinResult, error) {
	start := time.Now()
	result, err := s.spin(ctx, userID)

	status := "success"
	switch {
	case errors.Is(err, ErrNoActivePeriod):
		status = "closed"
	case errors.Is(err, repository.ErrAlreadySpun):
		status = "duplicate"
	case err != nil:
		status = "failure"
	}
	metrics.RecordSpinDuration(status, time.Since(start).Seconds())

	return result, err
}

func (s *SpinService) spin(ctx context.Context, userID string) (*SpinResult, error) {
	// Period and date are read from the same instant.
	now := s.now()
	period, ok := s.resolver.At(now)
	if !ok {
		return nil, ErrNoActivePeriod
	}

	coupon, err := issueCoupon(ctx, s.couponRepo, s.restaurantRepo, userID, now)
	if err != nil {
		return nil, err
	}
	coupon.MealPeriod = period.Key

	spin := &models.Spin{
		ID:         uuid.New().String(),
		UserID:     userID,
		MealPeriod: period.Key,
		SpinDate:   s.resolver.DateAt(now),
		CouponID:   coupon.ID,
		CreatedAt:  coupon.CreatedAt,
	}

	err = saveWithFreshCode(ctx, s.couponRepo, coupon, func() error {
		return s.couponRepo.CreateWithSpin(ctx, coupon, spin)
	})
	if err != nil {
		if errors.Is(err, repository.ErrAlreadySpun) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save spin: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("meal_period", period.Key).
		Str("coupon_id", coupon.ID).
		Msg("Wheel spun")

	return &SpinResult{MealPeriod: period, Coupon: s.coupons.view(coupon)}, nil
}

// issueCoupon draws a template and builds an unsaved coupon from it
func issueCoupon(
	ctx context.Context,
	couponRepo repository.CouponStore,
	restaurantRepo repository.RestaurantStore,
	userID string,
	now time.Time,
) (*models.Coupon, error) {
	templates, err := restaurantRepo.ListActiveTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupon templates: %w", err)
	}

	template, err := drawTemplate(templates)
	if err != nil {
		return nil, err
	}

	restaurant, err := restaurantRepo.GetByID(ctx, template.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get restaurant: %w", err)
	}

	code, err := generateUniqueCode(ctx, couponRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	return &models.Coupon{
		ID:                uuid.New().String(),
		UserID:            userID,
		RestaurantID:      restaurant.ID,
		TemplateID:        template.ID,
		Code:              code,
		Title:             template.Title,
		Description:       template.Description,
		Discount:          template.Discount,
		CreatedAt:         now,
		RestaurantName:    restaurant.Name,
		RestaurantAddress: restaurant.Address,
	}, nil
}

// saveWithFreshCode runs save, drawing a new redemption code whenever the insert lost a
// race for the current one
func saveWithFreshCode(ctx context.Context, couponRepo repository.CouponStore, coupon *models.Coupon, save func() error) error {
	for attempt := 1; ; attempt++ {
		err := save()
		if !errors.Is(err, repository.ErrDuplicateCode) || attempt == maxCodeCollisions {
			return err
		}

		log.Warn().Str("coupon_id", coupon.ID).Int("attempt", attempt).Msg("Redemption code collided, retrying")
		code, err := generateUniqueCode(ctx, couponRepo)
		if err != nil {
			return fmt.Errorf("failed to generate code: %w", err)
		}
		coupon.Code = code
	}
}

// drawTemplate picks a template with probability proportional to its weight
func drawTemplate(templates []*models.CouponTemplate) (*models.CouponTemplate, error) {
	total := 0
	for _, t := range templates {
		if t.Weight > 0 {
			total += t.Weight
		}
	}
	if total == 0 {
		return nil, ErrNoPrizes
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(total)))
	if err != nil {
		return nil, fmt.Errorf("failed to read random: %w", err)
	}
	return pickWeighted(templates, int(n.Int64())), nil
}

// pickWeighted maps roll in [0, total weight) onto a template
func pickWeighted(templates []*models.CouponTemplate, roll int) *models.CouponTemplate {
	var last *models.CouponTemplate
	for _, t := range templates {
		if t.Weight <= 0 {
			continue
		}
		if roll < t.Weight {
			return t
		}
		roll -= t.Weight
		last = t
	}
	return last
}
