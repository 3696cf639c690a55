package services

import (
	"time"

	"caotun-spin-backend/internal/models"
)

// MealPeriodZone is the fixed UTC+8 zone meal periods are evaluated in, whatever the host zone
var MealPeriodZone = time.FixedZone("UTC+8", 8*60*60)

// FallbackMealPeriod is shown when no window is open
var FallbackMealPeriod = models.MealPeriod{Name: "用餐", Icon: "🍴"}

var defaultMealSchedule = []models.MealPeriod{
	{Key: "breakfast", Name: "早餐", Icon: "🌅", StartMinute: 5 * 60, EndMinute: 10 * 60},
	{Key: "lunch", Name: "午餐", Icon: "🍱", StartMinute: 11 * 60, EndMinute: 14 * 60},
	{Key: "afternoon_tea", Name: "下午茶", Icon: "☕", StartMinute: 14 * 60, EndMinute: 16 * 60},
	{Key: "dinner", Name: "晚餐", Icon: "🍽️", StartMinute: 16 * 60, EndMinute: 21 * 60},
	{Key: "late_night", Name: "宵夜", Icon: "🌙", StartMinute: 20 * 60, EndMinute: 24 * 60},
}

// DefaultMealSchedule returns a copy of the fixed five-period table in priority order
func DefaultMealSchedule() []models.MealPeriod {
	schedule := make([]models.MealPeriod, len(defaultMealSchedule))
	copy(schedule, defaultMealSchedule)
	return schedule
}

// MealPeriodResolver picks the primary meal period for the current time
type MealPeriodResolver struct {
	schedule []models.MealPeriod
	now      Clock
}

// NewMealPeriodResolver creates a resolver over the default schedule
func NewMealPeriodResolver(now Clock) *MealPeriodResolver {
	if now == nil {
		now = time.Now
	}
	return &MealPeriodResolver{
		schedule: DefaultMealSchedule(),
		now:      now,
	}
}

// Current returns the first window containing now, or false when none is open
func (r *MealPeriodResolver) Current() (models.MealPeriod, bool) {
	return r.At(r.now())
}

// At resolves the period for an arbitrary instant
func (r *MealPeriodResolver) At(t time.Time) (models.MealPeriod, bool) {
	local := t.In(MealPeriodZone)
	minute := local.Hour()*60 + local.Minute()

	// Listed order is the tie-break: dinner wins over late night between 20:00 and 21:00.
	for _, p := range r.schedule {
		if minute >= p.StartMinute && minute < p.EndMinute {
			return p, true
		}
	}
	return models.MealPeriod{}, false
}

// CurrentOrFallback returns the active period or the generic dining label
func (r *MealPeriodResolver) CurrentOrFallback() (models.MealPeriod, bool) {
	if p, ok := r.Current(); ok {
		return p, true
	}
	return FallbackMealPeriod, false
}

// Today returns the current calendar date in the meal-period zone as YYYY-MM-DD
func (r *MealPeriodResolver) Today() string {
	return r.DateAt(r.now())
}

// DateAt returns t's calendar date in the meal-period zone as YYYY-MM-DD
func (r *MealPeriodResolver) DateAt(t time.Time) string {
	return t.In(MealPeriodZone).Format(time.DateOnly)
}

// Schedule returns a copy of the resolver's table
func (r *MealPeriodResolver) Schedule() []models.MealPeriod {
	schedule := make([]models.MealPeriod, len(r.schedule))
	copy(schedule, r.schedule)
	return schedule
}

// MealPeriodStatus is the resolved period as served to clients
type MealPeriodStatus struct {
	Active     bool              `json:"active"`
	Period     models.MealPeriod `json:"period"`
	Date       string            `json:"date"`
	ServerTime time.Time         `json:"server_time"`
}

// Status resolves the current period with the fallback label applied
func (r *MealPeriodResolver) Status() MealPeriodStatus {
	now := r.now()
	period, ok := r.At(now)
	if !ok {
		period = FallbackMealPeriod
	}
	return MealPeriodStatus{
		Active:     ok,
		Period:     period,
		Date:       r.DateAt(now),
		ServerTime: now,
	}
}
