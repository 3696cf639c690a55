package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"caotun-spin-backend/internal/models"
	"caotun-spin-backend/internal/repository"

	"github.com/stretchr/testify/require"
)

// testZone stands in for the host zone so expiry tests do not depend on the machine
var testZone = time.FixedZone("TST", 8*60*60)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// at builds a wall-clock time in the meal-period zone
func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, MealPeriodZone)
}

// seedPrize stores one restaurant with one active template
func seedPrize(t *testing.T, stores repository.Stores, weight int) (*models.Restaurant, *models.CouponTemplate) {
	t.Helper()
	ctx := context.Background()

	restaurant := &models.Restaurant{
		ID:        "r-1",
		Name:      "阿婆肉圓",
		Address:   "南投縣草屯鎮中正路 1 號",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, stores.Restaurants.Create(ctx, restaurant))

	template := &models.CouponTemplate{
		ID:           "t-1",
		RestaurantID: restaurant.ID,
		Title:        "肉圓買一送一",
		Description:  "限內用",
		Discount:     "BOGO",
		Weight:       weight,
		Active:       true,
		CreatedAt:    restaurant.CreatedAt,
	}
	require.NoError(t, stores.Restaurants.CreateTemplate(ctx, template))

	return restaurant, template
}
