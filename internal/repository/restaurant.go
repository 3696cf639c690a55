package repository

import (
	"context"
	"errors"
	"fmt"

	"caotun-spin-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RestaurantRepository handles database operations for restaurants and coupon templates
type RestaurantRepository struct {
	db *pgxpool.Pool
}

// NewRestaurantRepository creates a new restaurant repository
func NewRestaurantRepository(db *pgxpool.Pool) *RestaurantRepository {
	return &RestaurantRepository{db: db}
}

// Create creates a new restaurant
func (r *RestaurantRepository) Create(ctx context.Context, restaurant *models.Restaurant) error {
	query := `
		INSERT INTO restaurants (id, name, address, phone, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		restaurant.ID, restaurant.Name, restaurant.Address, restaurant.Phone, restaurant.ImageURL, restaurant.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create restaurant: %w", err)
	}
	return nil
}

// GetByID retrieves a restaurant by ID
func (r *RestaurantRepository) GetByID(ctx context.Context, id string) (*models.Restaurant, error) {
	query := `
		SELECT id, name, address, phone, image_url, created_at
		FROM restaurants
		WHERE id = $1
	`
	var restaurant models.Restaurant
	err := r.db.QueryRow(ctx, query, id).Scan(
		&restaurant.ID, &restaurant.Name, &restaurant.Address, &restaurant.Phone,
		&restaurant.ImageURL, &restaurant.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get restaurant: %w", err)
	}
	return &restaurant, nil
}

// List returns all restaurants ordered by name
func (r *RestaurantRepository) List(ctx context.Context) ([]*models.Restaurant, error) {
	query := `
		SELECT id, name, address, phone, image_url, created_at
		FROM restaurants
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []*models.Restaurant
	for rows.Next() {
		var restaurant models.Restaurant
		err := rows.Scan(
			&restaurant.ID, &restaurant.Name, &restaurant.Address, &restaurant.Phone,
			&restaurant.ImageURL, &restaurant.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}
		restaurants = append(restaurants, &restaurant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restaurants: %w", err)
	}
	return restaurants, nil
}

// UpdateImageURL updates the restaurant cover image
func (r *RestaurantRepository) UpdateImageURL(ctx context.Context, id, imageURL string) error {
	query := `UPDATE restaurants SET image_url = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, imageURL, id)
	if err != nil {
		return fmt.Errorf("failed to update restaurant image_url: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTemplate creates a coupon template for a restaurant
func (r *RestaurantRepository) CreateTemplate(ctx context.Context, template *models.CouponTemplate) error {
	query := `
		INSERT INTO coupon_templates (id, restaurant_id, title, description, discount, weight, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		template.ID, template.RestaurantID, template.Title, template.Description,
		template.Discount, template.Weight, template.Active, template.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create coupon template: %w", err)
	}
	return nil
}

// ListTemplates returns the templates of one restaurant
func (r *RestaurantRepository) ListTemplates(ctx context.Context, restaurantID string) ([]*models.CouponTemplate, error) {
	query := `
		SELECT id, restaurant_id, title, description, discount, weight, active, created_at
		FROM coupon_templates
		WHERE restaurant_id = $1
		ORDER BY created_at, id
	`
	return r.queryTemplates(ctx, query, restaurantID)
}

// ListActiveTemplates returns every template eligible for the wheel
func (r *RestaurantRepository) ListActiveTemplates(ctx context.Context) ([]*models.CouponTemplate, error) {
	query := `
		SELECT id, restaurant_id, title, description, discount, weight, active, created_at
		FROM coupon_templates
		WHERE active AND weight > 0
		ORDER BY created_at, id
	`
	return r.queryTemplates(ctx, query)
}

func (r *RestaurantRepository) queryTemplates(ctx context.Context, query string, args ...any) ([]*models.CouponTemplate, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupon templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.CouponTemplate
	for rows.Next() {
		var t models.CouponTemplate
		err := rows.Scan(&t.ID, &t.RestaurantID, &t.Title, &t.Description, &t.Discount, &t.Weight, &t.Active, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon template: %w", err)
		}
		templates = append(templates, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coupon templates: %w", err)
	}
	return templates, nil
}
