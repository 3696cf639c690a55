package repository

import (
	"context"
	"errors"
	"fmt"

	"caotun-spin-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckInRepository handles database operations for daily check-ins
type CheckInRepository struct {
	db *pgxpool.Pool
}

// NewCheckInRepository creates a new check-in repository
func NewCheckInRepository(db *pgxpool.Pool) *CheckInRepository {
	return &CheckInRepository{db: db}
}

// Latest returns the user's most recent check-in
func (r *CheckInRepository) Latest(ctx context.Context, userID string) (*models.CheckIn, error) {
	query := `
		SELECT user_id, to_char(check_in_date, 'YYYY-MM-DD'), streak_days, created_at
		FROM check_ins
		WHERE user_id = $1
		ORDER BY check_in_date DESC
		LIMIT 1
	`
	var c models.CheckIn
	err := r.db.QueryRow(ctx, query, userID).Scan(&c.UserID, &c.Date, &c.StreakDays, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest check-in: %w", err)
	}
	return &c, nil
}

// Create records a check-in
func (r *CheckInRepository) Create(ctx context.Context, checkIn *models.CheckIn) error {
	query := `
		INSERT INTO check_ins (user_id, check_in_date, streak_days, created_at)
		VALUES ($1, $2::date, $3, $4)
	`
	_, err := r.db.Exec(ctx, query, checkIn.UserID, checkIn.Date, checkIn.StreakDays, checkIn.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyCheckedIn
		}
		return fmt.Errorf("failed to create check-in: %w", err)
	}
	return nil
}
