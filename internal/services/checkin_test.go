package services

import (
	"context"
	"testing"

	"caotun-spin-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInService_StreakContinuesAndResets(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(at(2024, 3, 1, 9, 0))
	seedPrize(t, f.stores, 1)

	for day := 1; day <= 3; day++ {
		f.clock.Set(at(2024, 3, day, 9, 0))
		result, err := f.checkIns.CheckIn(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, day, result.CheckIn.StreakDays)
		assert.Nil(t, result.Reward)
	}

	// Skipping the 4th restarts the streak.
	f.clock.Set(at(2024, 3, 5, 9, 0))
	result, err := f.checkIns.CheckIn(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.CheckIn.StreakDays)
	assert.Equal(t, "2024-03-05", result.CheckIn.Date)
}

func TestCheckInService_SecondCheckInSameDay(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(at(2024, 3, 1, 0, 30))

	_, err := f.checkIns.CheckIn(ctx, "user-1")
	require.NoError(t, err)

	f.clock.Set(at(2024, 3, 1, 23, 30))
	_, err = f.checkIns.CheckIn(ctx, "user-1")
	assert.ErrorIs(t, err, repository.ErrAlreadyCheckedIn)
}

func TestCheckInService_RewardOnSeventhDay(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(at(2024, 2, 25, 9, 0))
	seedPrize(t, f.stores, 1)

	var last *CheckInResult
	for i := 0; i < RewardStreakDays; i++ {
		f.clock.Set(at(2024, 2, 25+i, 9, 0))
		result, err := f.checkIns.CheckIn(ctx, "user-1")
		require.NoError(t, err)
		if i < RewardStreakDays-1 {
			assert.Nil(t, result.Reward)
		}
		last = result
	}

	// 2024 is a leap year: Feb 25 plus six days is Mar 2.
	assert.Equal(t, "2024-03-02", last.CheckIn.Date)
	assert.Equal(t, RewardStreakDays, last.CheckIn.StreakDays)
	require.NotNil(t, last.Reward)
	assert.True(t, last.Reward.IsCheckInReward)
	assert.False(t, last.Reward.Expired)

	coupons, err := f.coupons.ListCoupons(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, coupons, 1)
	assert.Equal(t, last.Reward.ID, coupons[0].ID)
	assert.Equal(t, "2024/3/9", f.coupons.ShareData(coupons[0].Coupon).ExpiryDate)
}

func TestCheckInService_RewardFailureKeepsCheckIn(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(at(2024, 3, 1, 9, 0))

	for day := 1; day <= RewardStreakDays; day++ {
		f.clock.Set(at(2024, 3, day, 9, 0))
		result, err := f.checkIns.CheckIn(ctx, "user-1")
		require.NoError(t, err)
		assert.Nil(t, result.Reward)
	}

	latest, err := f.stores.CheckIns.Latest(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, RewardStreakDays, latest.StreakDays)
}

func TestPreviousDay(t *testing.T) {
	assert.Equal(t, "2024-02-29", previousDay("2024-03-01"))
	assert.Equal(t, "2023-12-31", previousDay("2024-01-01"))
	assert.Equal(t, "", previousDay("nope"))
}
