package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caotun-spin-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const couponCodeConstraint = "coupons_code_key"

const couponColumns = `
	c.id, c.user_id, c.restaurant_id, COALESCE(c.template_id::text, ''), c.code, c.title, c.description,
	c.discount, c.meal_period, c.is_check_in_reward, c.redeemed_at, c.created_at, r.name, r.address
`

// CouponRepository handles database operations for coupons and spins
type CouponRepository struct {
	db *pgxpool.Pool
}

// NewCouponRepository creates a new coupon repository
func NewCouponRepository(db *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{db: db}
}

// CreateWithSpin inserts the spin and its coupon in one transaction
func (r *CouponRepository) CreateWithSpin(ctx context.Context, coupon *models.Coupon, spin *models.Spin) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertCoupon(ctx, tx, coupon); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO spins (id, user_id, meal_period, spin_date, coupon_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, spin.ID, spin.UserID, spin.MealPeriod, spin.SpinDate, spin.CouponID, spin.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadySpun
		}
		return fmt.Errorf("failed to create spin: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Create inserts a coupon that was not won by spinning
func (r *CouponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	return insertCoupon(ctx, r.db, coupon)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertCoupon(ctx context.Context, db execer, coupon *models.Coupon) error {
	query := `
		INSERT INTO coupons (id, user_id, restaurant_id, template_id, code, title, description,
			discount, meal_period, is_check_in_reward, created_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := db.Exec(ctx, query,
		coupon.ID, coupon.UserID, coupon.RestaurantID, coupon.TemplateID, coupon.Code, coupon.Title,
		coupon.Description, coupon.Discount, coupon.MealPeriod, coupon.IsCheckInReward, coupon.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == couponCodeConstraint {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}

// CodeExists checks if a redemption code is taken
func (r *CouponRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM coupons WHERE code = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}
	return exists, nil
}

// GetByID retrieves a coupon by ID
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + `
		FROM coupons c JOIN restaurants r ON r.id = c.restaurant_id
		WHERE c.id = $1
	`
	return r.scanOne(ctx, query, id)
}

// GetByCode retrieves a coupon by its redemption code
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + `
		FROM coupons c JOIN restaurants r ON r.id = c.restaurant_id
		WHERE c.code = $1
	`
	return r.scanOne(ctx, query, code)
}

// ListByUser returns a user's coupons, newest first
func (r *CouponRepository) ListByUser(ctx context.Context, userID string) ([]*models.Coupon, error) {
	query := `SELECT ` + couponColumns + `
		FROM coupons c JOIN restaurants r ON r.id = c.restaurant_id
		WHERE c.user_id = $1
		ORDER BY c.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []*models.Coupon
	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, coupon)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coupons: %w", err)
	}
	return coupons, nil
}

// MarkRedeemed stamps the redemption time once
func (r *CouponRepository) MarkRedeemed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE coupons SET redeemed_at = $1 WHERE id = $2 AND redeemed_at IS NULL`
	result, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to redeem coupon: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CouponRepository) scanOne(ctx context.Context, query string, arg string) (*models.Coupon, error) {
	coupon, err := scanCoupon(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return coupon, nil
}

func scanCoupon(row pgx.Row) (*models.Coupon, error) {
	var c models.Coupon
	err := row.Scan(
		&c.ID, &c.UserID, &c.RestaurantID, &c.TemplateID, &c.Code, &c.Title, &c.Description,
		&c.Discount, &c.MealPeriod, &c.IsCheckInReward, &c.RedeemedAt, &c.CreatedAt,
		&c.RestaurantName, &c.RestaurantAddress,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
