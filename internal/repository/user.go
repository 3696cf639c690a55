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

const uniqueViolation = "23505"

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, device_id, phone, email, push_token, created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.DeviceID, user.Phone, user.Email, user.PushToken, user.CreatedAt, user.LastLoginAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateContact
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, device_id, phone, email, push_token, created_at, last_login_at
		FROM users
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

// GetByContact retrieves a user by phone or email. Empty arguments never match.
func (r *UserRepository) GetByContact(ctx context.Context, phone, email string) (*models.User, error) {
	query := `
		SELECT id, device_id, phone, email, push_token, created_at, last_login_at
		FROM users
		WHERE ($1 <> '' AND phone = $1) OR ($2 <> '' AND email = $2)
		LIMIT 1
	`
	return r.scanOne(ctx, query, phone, email)
}

func (r *UserRepository) scanOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&user.ID, &user.DeviceID, &user.Phone, &user.Email, &user.PushToken, &user.CreatedAt, &user.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// RecordLogin stores the device the user last logged in from
func (r *UserRepository) RecordLogin(ctx context.Context, userID, deviceID string, at time.Time) error {
	query := `UPDATE users SET device_id = $1, last_login_at = $2 WHERE id = $3`
	result, err := r.db.Exec(ctx, query, deviceID, at, userID)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, pushToken, userID)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPushTokens returns every registered push token
func (r *UserRepository) ListPushTokens(ctx context.Context) ([]string, error) {
	query := `SELECT push_token FROM users WHERE push_token IS NOT NULL AND push_token <> '' ORDER BY push_token`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list push tokens: %w", err)
	}
	tokens, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan push tokens: %w", err)
	}
	return tokens, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
