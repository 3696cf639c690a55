package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"caotun-spin-backend/internal/models"
	"caotun-spin-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	codeLength = 6
	codeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxCodeCollisions = 3
)

var (
	ErrCouponExpired  = errors.New("coupon has expired")
	ErrCouponRedeemed = errors.New("coupon already redeemed")
	ErrCouponNotOwned = errors.New("coupon belongs to another restaurant")
)

// CouponView is a coupon annotated with its expiry status at listing time
type CouponView struct {
	*models.Coupon
	ExpiresAt   time.Time `json:"expires_at"`
	Expired     bool      `json:"expired"`
	DaysExpired int       `json:"days_expired"`
}

// CouponService handles the coupon wallet and merchant redemption
type CouponService struct {
	couponRepo    repository.CouponStore
	expiry        *ExpiryEvaluator
	hideAfterDays int
	now           Clock
}

// NewCouponService creates a new coupon service
func NewCouponService(couponRepo repository.CouponStore, expiry *ExpiryEvaluator, hideAfterDays int, now Clock) *CouponService {
	if now == nil {
		now = time.Now
	}
	return &CouponService{
		couponRepo:    couponRepo,
		expiry:        expiry,
		hideAfterDays: hideAfterDays,
		now:           now,
	}
}

// ListCoupons returns the user's wallet, newest first, without coupons past the grace period
func (s *CouponService) ListCoupons(ctx context.Context, userID string) ([]CouponView, error) {
	coupons, err := s.couponRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	views := make([]CouponView, 0, len(coupons))
	for _, c := range coupons {
		if s.expiry.ShouldHideCoupon(c.CreatedAt, s.hideAfterDays, c.IsCheckInReward) {
			continue
		}
		views = append(views, s.view(c))
	}
	return views, nil
}

func (s *CouponService) view(c *models.Coupon) CouponView {
	return CouponView{
		Coupon:      c,
		ExpiresAt:   s.expiry.ExpiresAt(c.CreatedAt, c.IsCheckInReward),
		Expired:     s.expiry.IsCouponExpired(c.CreatedAt, c.IsCheckInReward),
		DaysExpired: s.expiry.DaysExpired(c.CreatedAt, c.IsCheckInReward),
	}
}

// ShareData builds the presentational share input for a coupon
func (s *CouponService) ShareData(c *models.Coupon) models.ShareCouponData {
	return models.ShareCouponData{
		CouponTitle:       c.Title,
		RestaurantName:    c.RestaurantName,
		RestaurantAddress: c.RestaurantAddress,
		ExpiryDate:        s.expiry.ExpiryDateLabel(c.CreatedAt, c.IsCheckInReward),
		Description:       c.Description,
	}
}

// ShareCoupon builds share text and targets for one of the user's coupons.
// Coupons of other users are reported as not found.
func (s *CouponService) ShareCoupon(ctx context.Context, userID, couponID, pageURL string) (*SharePayload, error) {
	coupon, err := s.couponRepo.GetByID(ctx, couponID)
	if err != nil {
		return nil, err
	}
	if coupon.UserID != userID {
		return nil, repository.ErrNotFound
	}

	payload := BuildSharePayload(s.ShareData(coupon), pageURL)
	return &payload, nil
}

// RedeemCoupon marks a coupon as used at the merchant's counter
func (s *CouponService) RedeemCoupon(ctx context.Context, restaurantID, code string) (*models.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if coupon.RestaurantID != restaurantID {
		return nil, ErrCouponNotOwned
	}
	if coupon.RedeemedAt != nil {
		return nil, ErrCouponRedeemed
	}
	if s.expiry.IsCouponExpired(coupon.CreatedAt, coupon.IsCheckInReward) {
		return nil, ErrCouponExpired
	}

	now := s.now()
	if err := s.couponRepo.MarkRedeemed(ctx, coupon.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lost a race with a concurrent redemption.
			return nil, ErrCouponRedeemed
		}
		return nil, fmt.Errorf("failed to redeem coupon: %w", err)
	}
	coupon.RedeemedAt = &now

	log.Info().
		Str("coupon_id", coupon.ID).
		Str("restaurant_id", restaurantID).
		Msg("Coupon redeemed")

	return coupon, nil
}

// generateUniqueCode generates a redemption code not yet used by any coupon
func generateUniqueCode(ctx context.Context, couponRepo repository.CouponStore) (string, error) {
	maxAttempts := 10
	for i := 0; i < maxAttempts; i++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		exists, err := couponRepo.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code existence: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique code after %d attempts", maxAttempts)
}

// generateCode generates a random 6-character code without look-alike characters
func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		if err != nil {
			return "", fmt.Errorf("failed to read random: %w", err)
		}
		code[i] = codeChars[n.Int64()]
	}
	return string(code), nil
}
