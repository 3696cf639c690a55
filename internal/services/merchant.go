package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	appconfig "caotun-spin-backend/internal/config"
	"caotun-spin-backend/internal/models"
	"caotun-spin-backend/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const imageUploadExpiry = 5 * time.Minute

// ErrUploadsDisabled is returned when no object storage is configured
var ErrUploadsDisabled = errors.New("image uploads are not configured")

// ValidationError wraps a rejected merchant request
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ImagePresigner issues direct upload URLs for restaurant images
type ImagePresigner interface {
	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (uploadURL, publicURL string, err error)
}

// S3Presigner presigns uploads into an S3 bucket
type S3Presigner struct {
	client   *s3.Client
	bucket   string
	region   string
	endpoint string
}

// NewS3Presigner builds an S3 client from configuration. Static keys and a custom
// endpoint are optional.
func NewS3Presigner(ctx context.Context, cfg appconfig.AWSConfig) (*S3Presigner, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Presigner{
		client:   client,
		bucket:   cfg.S3Bucket,
		region:   cfg.Region,
		endpoint: cfg.Endpoint,
	}, nil
}

// PresignPut returns a pre-signed PUT URL and the object's public URL
func (p *S3Presigner) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, string, error) {
	presignClient := s3.NewPresignClient(p.client)
	request, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	return request.URL, p.publicURL(key), nil
}

func (p *S3Presigner) publicURL(key string) string {
	if p.endpoint != "" {
		return strings.TrimRight(p.endpoint, "/") + "/" + path.Join(p.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.bucket, p.region, key)
}

// CreateRestaurantRequest represents a request to add a partner restaurant
type CreateRestaurantRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Address string `json:"address" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"omitempty,max=20"`
}

// CreateTemplateRequest represents a request to add a prize to the wheel
type CreateTemplateRequest struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"omitempty,max=500"`
	Discount    string `json:"discount" validate:"required,max=50"`
	Weight      int    `json:"weight" validate:"min=0,max=1000"`
	Active      *bool  `json:"active"`
}

// ImageUploadRequest represents a request for a restaurant image upload URL
type ImageUploadRequest struct {
	ContentType string `json:"content_type" validate:"required,oneof=image/jpeg image/png image/webp"`
}

// ImageUploadResponse represents the response with pre-signed URL
type ImageUploadResponse struct {
	UploadURL string `json:"upload_url"`
	ImageURL  string `json:"image_url"`
	ExpiresIn int    `json:"expires_in"`
}

// MerchantService handles the merchant portal
type MerchantService struct {
	restaurantRepo repository.RestaurantStore
	presigner      ImagePresigner
	validate       *validator.Validate
	now            Clock
}

// NewMerchantService creates a new merchant service. A nil presigner disables image uploads.
func NewMerchantService(restaurantRepo repository.RestaurantStore, presigner ImagePresigner, now Clock) *MerchantService {
	if now == nil {
		now = time.Now
	}
	return &MerchantService{
		restaurantRepo: restaurantRepo,
		presigner:      presigner,
		validate:       validator.New(),
		now:            now,
	}
}

// CreateRestaurant adds a partner restaurant
func (s *MerchantService) CreateRestaurant(ctx context.Context, req CreateRestaurantRequest) (*models.Restaurant, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Err: err}
	}

	restaurant := &models.Restaurant{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(req.Name),
		Address:   strings.TrimSpace(req.Address),
		Phone:     req.Phone,
		CreatedAt: s.now(),
	}
	if err := s.restaurantRepo.Create(ctx, restaurant); err != nil {
		return nil, fmt.Errorf("failed to create restaurant: %w", err)
	}
	return restaurant, nil
}

// ListRestaurants returns every restaurant
func (s *MerchantService) ListRestaurants(ctx context.Context) ([]*models.Restaurant, error) {
	return s.restaurantRepo.List(ctx)
}

// GetRestaurant returns one restaurant
func (s *MerchantService) GetRestaurant(ctx context.Context, restaurantID string) (*models.Restaurant, error) {
	return s.restaurantRepo.GetByID(ctx, restaurantID)
}

// CreateTemplate adds a prize for a restaurant. Weight defaults to 1 and templates start active.
func (s *MerchantService) CreateTemplate(ctx context.Context, restaurantID string, req CreateTemplateRequest) (*models.CouponTemplate, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if _, err := s.restaurantRepo.GetByID(ctx, restaurantID); err != nil {
		return nil, err
	}

	weight := req.Weight
	if weight == 0 {
		weight = 1
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	template := &models.CouponTemplate{
		ID:           uuid.New().String(),
		RestaurantID: restaurantID,
		Title:        req.Title,
		Description:  req.Description,
		Discount:     req.Discount,
		Weight:       weight,
		Active:       active,
		CreatedAt:    s.now(),
	}
	if err := s.restaurantRepo.CreateTemplate(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to create coupon template: %w", err)
	}
	return template, nil
}

// ListTemplates returns the restaurant's prizes
func (s *MerchantService) ListTemplates(ctx context.Context, restaurantID string) ([]*models.CouponTemplate, error) {
	if _, err := s.restaurantRepo.GetByID(ctx, restaurantID); err != nil {
		return nil, err
	}
	return s.restaurantRepo.ListTemplates(ctx, restaurantID)
}

// RequestImageUpload generates a pre-signed URL for the restaurant image and points the
// restaurant at the object it will create
func (s *MerchantService) RequestImageUpload(ctx context.Context, restaurantID string, req ImageUploadRequest) (*ImageUploadResponse, error) {
	if s.presigner == nil {
		return nil, ErrUploadsDisabled
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if _, err := s.restaurantRepo.GetByID(ctx, restaurantID); err != nil {
		return nil, err
	}

	// S3 key: restaurants/{restaurant_id}/{image_id}{ext}
	key := fmt.Sprintf("restaurants/%s/%s%s", restaurantID, uuid.New().String(), imageExtensions[req.ContentType])

	uploadURL, imageURL, err := s.presigner.PresignPut(ctx, key, req.ContentType, imageUploadExpiry)
	if err != nil {
		return nil, err
	}

	if err := s.restaurantRepo.UpdateImageURL(ctx, restaurantID, imageURL); err != nil {
		return nil, fmt.Errorf("failed to update restaurant image: %w", err)
	}

	return &ImageUploadResponse{
		UploadURL: uploadURL,
		ImageURL:  imageURL,
		ExpiresIn: int(imageUploadExpiry.Seconds()),
	}, nil
}
