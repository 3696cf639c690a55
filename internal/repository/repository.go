package repository

import (
	"context"
	"errors"
	"time"

	"caotun-spin-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadySpun      = errors.New("already spun in this meal period")
	ErrAlreadyCheckedIn = errors.New("already checked in today")
	ErrDuplicateContact = errors.New("contact already registered")
	ErrDuplicateCode    = errors.New("redemption code already taken")
)

// UserStore persists players
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByContact(ctx context.Context, phone, email string) (*models.User, error)
	RecordLogin(ctx context.Context, userID, deviceID string, at time.Time) error
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
	ListPushTokens(ctx context.Context) ([]string, error)
}

// CouponStore persists won coupons and spins
type CouponStore interface {
	// CreateWithSpin stores the coupon and the spin that produced it atomically.
	// Returns ErrAlreadySpun when the user already spun in the same period and day.
	CreateWithSpin(ctx context.Context, coupon *models.Coupon, spin *models.Spin) error
	// Create and CreateWithSpin return ErrDuplicateCode when the code is taken.
	Create(ctx context.Context, coupon *models.Coupon) error
	CodeExists(ctx context.Context, code string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Coupon, error)
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Coupon, error)
	MarkRedeemed(ctx context.Context, id string, at time.Time) error
}

// RestaurantStore persists restaurants and their coupon templates
type RestaurantStore interface {
	Create(ctx context.Context, restaurant *models.Restaurant) error
	GetByID(ctx context.Context, id string) (*models.Restaurant, error)
	List(ctx context.Context) ([]*models.Restaurant, error)
	UpdateImageURL(ctx context.Context, id, imageURL string) error
	CreateTemplate(ctx context.Context, template *models.CouponTemplate) error
	ListTemplates(ctx context.Context, restaurantID string) ([]*models.CouponTemplate, error)
	ListActiveTemplates(ctx context.Context) ([]*models.CouponTemplate, error)
}

// CheckInStore persists daily check-ins
type CheckInStore interface {
	// Latest returns ErrNotFound when the user never checked in.
	Latest(ctx context.Context, userID string) (*models.CheckIn, error)
	// Create returns ErrAlreadyCheckedIn for a second check-in on the same date.
	Create(ctx context.Context, checkIn *models.CheckIn) error
}

// Stores bundles every store implementation of one backend
type Stores struct {
	Users       UserStore
	Coupons     CouponStore
	Restaurants RestaurantStore
	CheckIns    CheckInStore
}

// NewPostgresStores wires every store to the pool
func NewPostgresStores(db *pgxpool.Pool) Stores {
	return Stores{
		Users:       NewUserRepository(db),
		Coupons:     NewCouponRepository(db),
		Restaurants: NewRestaurantRepository(db),
		CheckIns:    NewCheckInRepository(db),
	}
}
