package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caotun-spin-backend/internal/metrics"
	"caotun-spin-backend/internal/models"
	"caotun-spin-backend/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrContactRequired = errors.New("exactly one of phone or email is required")
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrDeviceRequired  = errors.New("deviceId is required")
)

// UserService handles passwordless login and session tokens
type UserService struct {
	userRepo   repository.UserStore
	jwtSecret  string
	jwtExpDays int
	validate   *validator.Validate
	now        Clock
}

// NewUserService creates a new user service
func NewUserService(userRepo repository.UserStore, jwtSecret string, jwtExpDays int, now Clock) *UserService {
	if now == nil {
		now = time.Now
	}
	return &UserService{
		userRepo:   userRepo,
		jwtSecret:  jwtSecret,
		jwtExpDays: jwtExpDays,
		validate:   NewValidator(),
		now:        now,
	}
}

// ValidateLogin checks the request shape. The returned error is safe to show to users.
func (s *UserService) ValidateLogin(req *models.LoginRequest) error {
	if (req.Phone == "") == (req.Email == "") {
		return ErrContactRequired
	}

	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		switch fieldErrs[0].Field() {
		case "Phone":
			return ErrInvalidPhone
		case "Email":
			return ErrInvalidEmail
		case "DeviceID":
			return ErrDeviceRequired
		}
	}
	return err
}

// Login finds or creates the user behind the contact and issues a session token
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.ValidateLogin(req); err != nil {
		metrics.RecordLogin("invalid")
		return nil, err
	}

	if expected := Fingerprint(req.DeviceInfo); expected != req.DeviceID {
		log.Debug().
			Str("device_id", req.DeviceID).
			Str("expected", expected).
			Msg("Device id does not match reported device info")
	}

	now := s.now()
	result := "returning"

	user, err := s.userRepo.GetByContact(ctx, req.Phone, req.Email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		user, err = s.createUser(ctx, req, now)
		if err != nil {
			metrics.RecordLogin("failure")
			return nil, err
		}
		result = "created"
	case err != nil:
		metrics.RecordLogin("failure")
		return nil, fmt.Errorf("failed to look up user: %w", err)
	default:
		if err := s.userRepo.RecordLogin(ctx, user.ID, req.DeviceID, now); err != nil {
			metrics.RecordLogin("failure")
			return nil, fmt.Errorf("failed to record login: %w", err)
		}
		user.DeviceID = req.DeviceID
		user.LastLoginAt = &now
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		metrics.RecordLogin("failure")
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	metrics.RecordLogin(result)
	return &models.LoginResponse{User: user, Token: token}, nil
}

func (s *UserService) createUser(ctx context.Context, req *models.LoginRequest, now time.Time) (*models.User, error) {
	user := &models.User{
		ID:          uuid.New().String(),
		DeviceID:    req.DeviceID,
		CreatedAt:   now,
		LastLoginAt: &now,
	}
	if req.Phone != "" {
		phone := req.Phone
		user.Phone = &phone
	} else {
		email := req.Email
		user.Email = &email
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.AddDate(0, 0, s.jwtExpDays).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

// GetUser returns a user by ID
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// UpdatePushToken registers or clears the user's APNs device token
func (s *UserService) UpdatePushToken(ctx context.Context, userID, pushToken string) error {
	var token *string
	if pushToken != "" {
		token = &pushToken
	}
	if err := s.userRepo.UpdatePushToken(ctx, userID, token); err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}
