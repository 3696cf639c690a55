package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caotun-spin-backend/internal/models"
	"caotun-spin-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// RewardStreakDays is the streak length that earns a check-in reward coupon
const RewardStreakDays = 7

// CheckInResult is the outcome of a daily check-in
type CheckInResult struct {
	CheckIn *models.CheckIn `json:"check_in"`
	Reward  *CouponView     `json:"reward,omitempty"`
}

// CheckInService handles daily check-ins and streak rewards
type CheckInService struct {
	checkInRepo    repository.CheckInStore
	couponRepo     repository.CouponStore
	restaurantRepo repository.RestaurantStore
	resolver       *MealPeriodResolver
	coupons        *CouponService
	now            Clock
}

// NewCheckInService creates a new check-in service
func NewCheckInService(
	checkInRepo repository.CheckInStore,
	couponRepo repository.CouponStore,
	restaurantRepo repository.RestaurantStore,
	resolver *MealPeriodResolver,
	coupons *CouponService,
	now Clock,
) *CheckInService {
	if now == nil {
		now = time.Now
	}
	return &CheckInService{
		checkInRepo:    checkInRepo,
		couponRepo:     couponRepo,
		restaurantRepo: restaurantRepo,
		resolver:       resolver,
		coupons:        coupons,
		now:            now,
	}
}

// CheckIn records today's check-in. Every seventh consecutive day grants a reward coupon.
func (s *CheckInService) CheckIn(ctx context.Context, userID string) (*CheckInResult, error) {
	now := s.now()
	today := s.resolver.DateAt(now)

	streak := 1
	latest, err := s.checkInRepo.Latest(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to get latest check-in: %w", err)
	case latest.Date == today:
		return nil, repository.ErrAlreadyCheckedIn
	case latest.Date == previousDay(today):
		streak = latest.StreakDays + 1
	}

	checkIn := &models.CheckIn{
		UserID:     userID,
		Date:       today,
		StreakDays: streak,
		CreatedAt:  now,
	}
	if err := s.checkInRepo.Create(ctx, checkIn); err != nil {
		if errors.Is(err, repository.ErrAlreadyCheckedIn) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create check-in: %w", err)
	}

	result := &CheckInResult{CheckIn: checkIn}
	if streak%RewardStreakDays != 0 {
		return result, nil
	}

	reward, err := s.grantReward(ctx, userID, checkIn.CreatedAt)
	if err != nil {
		// The check-in itself is already stored.
		log.Error().Err(err).Str("user_id", userID).Int("streak_days", streak).Msg("Failed to grant check-in reward")
		return result, nil
	}
	result.Reward = reward
	return result, nil
}

func (s *CheckInService) grantReward(ctx context.Context, userID string, now time.Time) (*CouponView, error) {
	coupon, err := issueCoupon(ctx, s.couponRepo, s.restaurantRepo, userID, now)
	if err != nil {
		return nil, err
	}
	coupon.IsCheckInReward = true

	err = saveWithFreshCode(ctx, s.couponRepo, coupon, func() error {
		return s.couponRepo.Create(ctx, coupon)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save reward coupon: %w", err)
	}

	log.Info().Str("user_id", userID).Str("coupon_id", coupon.ID).Msg("Check-in reward granted")

	view := s.coupons.view(coupon)
	return &view, nil
}

// previousDay returns the YYYY-MM-DD date before day
func previousDay(day string) string {
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(time.DateOnly)
}
