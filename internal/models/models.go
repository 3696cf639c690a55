package models

import "time"

// User represents a player identified by device and contact, without a password
type User struct {
	ID          string     `json:"id"`
	DeviceID    string     `json:"device_id"`
	Phone       *string    `json:"phone,omitempty"`
	Email       *string    `json:"email,omitempty"`
	PushToken   *string    `json:"push_token,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Restaurant represents a partner restaurant managed from the merchant portal
type Restaurant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CouponTemplate is a prize on the wheel. Weight controls how often it is drawn.
type CouponTemplate struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurant_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Discount     string    `json:"discount"`
	Weight       int       `json:"weight"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Coupon is a won coupon held by a user
type Coupon struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	RestaurantID      string     `json:"restaurant_id"`
	TemplateID        string     `json:"template_id,omitempty"`
	Code              string     `json:"code"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Discount          string     `json:"discount"`
	MealPeriod        string     `json:"meal_period,omitempty"`
	IsCheckInReward   bool       `json:"is_check_in_reward"`
	RedeemedAt        *time.Time `json:"redeemed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	RestaurantName    string     `json:"restaurant_name"`
	RestaurantAddress string     `json:"restaurant_address"`
}

// Spin records one wheel spin. A user spins at most once per meal period per day.
type Spin struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	MealPeriod string    `json:"meal_period"`
	SpinDate   string    `json:"spin_date"` // YYYY-MM-DD in the meal-period zone
	CouponID   string    `json:"coupon_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// CheckIn records a daily check-in and the streak it extends
type CheckIn struct {
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"` // YYYY-MM-DD in the meal-period zone
	StreakDays int       `json:"streak_days"`
	CreatedAt  time.Time `json:"created_at"`
}

// MealPeriod is one fixed daily window gating spin eligibility
type MealPeriod struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

// DeviceInfo describes the client environment a device fingerprint is derived from
type DeviceInfo struct {
	UserAgent        string `json:"userAgent"`
	ScreenResolution string `json:"screenResolution"`
	Timezone         string `json:"timezone"`
}

// DeviceIdentity is an anonymous correlation key, not a credential
type DeviceIdentity struct {
	DeviceID string `json:"deviceId"`
	DeviceInfo
}

// LoginRequest is the passwordless login contract. Exactly one of Phone or Email is set.
type LoginRequest struct {
	Phone      string     `json:"phone,omitempty" validate:"omitempty,twphone"`
	Email      string     `json:"email,omitempty" validate:"omitempty,looseemail"`
	DeviceID   string     `json:"deviceId" validate:"required"`
	DeviceInfo DeviceInfo `json:"deviceInfo"`
}

// LoginResponse carries the issued session
type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// ShareCouponData is the presentational input of share text composition
type ShareCouponData struct {
	CouponTitle       string `json:"coupon_title"`
	RestaurantName    string `json:"restaurant_name"`
	RestaurantAddress string `json:"restaurant_address"`
	ExpiryDate        string `json:"expiry_date"`
	Description       string `json:"description,omitempty"`
}
