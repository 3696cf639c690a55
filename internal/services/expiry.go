package services

import (
	"time"
)

const (
	// DefaultHideAfterDays is how many whole days past expiry a coupon stays listed
	DefaultHideAfterDays = 2

	checkInRewardValidDays = 7
	expiryDateLayout       = "2006/1/2"
)

// Clock returns the current time. Production code passes time.Now.
type Clock func() time.Time

// ExpiryEvaluator decides whether coupons are expired or should be hidden.
// Day boundaries are taken in loc, which is independent of the meal-period zone.
type ExpiryEvaluator struct {
	now Clock
	loc *time.Location
}

// NewExpiryEvaluator creates an evaluator. A nil clock means time.Now, a nil location means time.Local.
func NewExpiryEvaluator(now Clock, loc *time.Location) *ExpiryEvaluator {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &ExpiryEvaluator{now: now, loc: loc}
}

// ExpiresAt returns 23:59:59.999 of the creation day, or of the seventh day after it for
// check-in rewards
func (e *ExpiryEvaluator) ExpiresAt(createdAt time.Time, isCheckInReward bool) time.Time {
	local := createdAt.In(e.loc)
	days := 0
	if isCheckInReward {
		days = checkInRewardValidDays
	}
	return time.Date(local.Year(), local.Month(), local.Day()+days, 23, 59, 59, int(999*time.Millisecond), e.loc)
}

// IsCouponExpired reports whether now is past the coupon's expiry instant
func (e *ExpiryEvaluator) IsCouponExpired(createdAt time.Time, isCheckInReward bool) bool {
	return e.now().After(e.ExpiresAt(createdAt, isCheckInReward))
}

// DaysExpired returns 0 for a live coupon, otherwise the whole days elapsed since the expiry
// instant, never less than 1
func (e *ExpiryEvaluator) DaysExpired(createdAt time.Time, isCheckInReward bool) int {
	expiresAt := e.ExpiresAt(createdAt, isCheckInReward)
	now := e.now()
	if !now.After(expiresAt) {
		return 0
	}

	days := int(now.Sub(expiresAt) / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	return days
}

// ShouldHideCoupon reports whether the coupon is more than maxDays past expiry
func (e *ExpiryEvaluator) ShouldHideCoupon(createdAt time.Time, maxDays int, isCheckInReward bool) bool {
	return e.DaysExpired(createdAt, isCheckInReward) > maxDays
}

// ExpiryDateLabel formats the expiry day for display, e.g. "2024/3/9"
func (e *ExpiryEvaluator) ExpiryDateLabel(createdAt time.Time, isCheckInReward bool) string {
	return e.ExpiresAt(createdAt, isCheckInReward).Format(expiryDateLayout)
}
