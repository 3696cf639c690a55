package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"caotun-spin-backend/internal/models"
)

// NewMemoryStores returns process-local stores, used when no database is configured and in tests
func NewMemoryStores() Stores {
	return Stores{
		Users:       NewMemoryUserStore(),
		Coupons:     NewMemoryCouponStore(),
		Restaurants: NewMemoryRestaurantStore(),
		CheckIns:    NewMemoryCheckInStore(),
	}
}

// MemoryUserStore keeps users in a map
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// NewMemoryUserStore creates an empty user store
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]models.User)}
}

func (s *MemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if sameContact(u.Phone, user.Phone) || sameContact(u.Email, user.Email) {
			return ErrDuplicateContact
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryUserStore) GetByContact(_ context.Context, phone, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if (phone != "" && u.Phone != nil && *u.Phone == phone) ||
			(email != "" && u.Email != nil && *u.Email == email) {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) RecordLogin(_ context.Context, userID, deviceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.DeviceID = deviceID
	u.LastLoginAt = &at
	s.users[userID] = u
	return nil
}

func (s *MemoryUserStore) UpdatePushToken(_ context.Context, userID string, pushToken *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PushToken = pushToken
	s.users[userID] = u
	return nil
}

func (s *MemoryUserStore) ListPushTokens(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tokens []string
	for _, u := range s.users {
		if u.PushToken != nil && *u.PushToken != "" {
			tokens = append(tokens, *u.PushToken)
		}
	}
	sort.Strings(tokens)
	return tokens, nil
}

func sameContact(a, b *string) bool {
	return a != nil && b != nil && *a != "" && *a == *b
}

// MemoryCouponStore keeps coupons and spins in maps
type MemoryCouponStore struct {
	mu      sync.RWMutex
	coupons map[string]models.Coupon
	spins   map[spinKey]models.Spin
}

type spinKey struct {
	userID, mealPeriod, date string
}

// NewMemoryCouponStore creates an empty coupon store
func NewMemoryCouponStore() *MemoryCouponStore {
	return &MemoryCouponStore{
		coupons: make(map[string]models.Coupon),
		spins:   make(map[spinKey]models.Spin),
	}
}

func (s *MemoryCouponStore) CreateWithSpin(_ context.Context, coupon *models.Coupon, spin *models.Spin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.codeTaken(coupon.Code) {
		return ErrDuplicateCode
	}
	key := spinKey{spin.UserID, spin.MealPeriod, spin.SpinDate}
	if _, exists := s.spins[key]; exists {
		return ErrAlreadySpun
	}
	s.coupons[coupon.ID] = *coupon
	s.spins[key] = *spin
	return nil
}

func (s *MemoryCouponStore) Create(_ context.Context, coupon *models.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.codeTaken(coupon.Code) {
		return ErrDuplicateCode
	}
	s.coupons[coupon.ID] = *coupon
	return nil
}

func (s *MemoryCouponStore) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.codeTaken(code), nil
}

// codeTaken expects s.mu to be held
func (s *MemoryCouponStore) codeTaken(code string) bool {
	for _, c := range s.coupons {
		if c.Code == code {
			return true
		}
	}
	return false
}

func (s *MemoryCouponStore) GetByID(_ context.Context, id string) (*models.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.coupons[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryCouponStore) GetByCode(_ context.Context, code string) (*models.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.coupons {
		if c.Code == code {
			found := c
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryCouponStore) ListByUser(_ context.Context, userID string) ([]*models.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var coupons []*models.Coupon
	for _, c := range s.coupons {
		if c.UserID == userID {
			found := c
			coupons = append(coupons, &found)
		}
	}
	sort.Slice(coupons, func(i, j int) bool {
		return coupons[i].CreatedAt.After(coupons[j].CreatedAt)
	})
	return coupons, nil
}

func (s *MemoryCouponStore) MarkRedeemed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[id]
	if !ok || c.RedeemedAt != nil {
		return ErrNotFound
	}
	c.RedeemedAt = &at
	s.coupons[id] = c
	return nil
}

// MemoryRestaurantStore keeps restaurants and templates in maps
type MemoryRestaurantStore struct {
	mu          sync.RWMutex
	restaurants map[string]models.Restaurant
	templates   map[string]models.CouponTemplate
}

// NewMemoryRestaurantStore creates an empty restaurant store
func NewMemoryRestaurantStore() *MemoryRestaurantStore {
	return &MemoryRestaurantStore{
		restaurants: make(map[string]models.Restaurant),
		templates:   make(map[string]models.CouponTemplate),
	}
}

func (s *MemoryRestaurantStore) Create(_ context.Context, restaurant *models.Restaurant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.restaurants[restaurant.ID] = *restaurant
	return nil
}

func (s *MemoryRestaurantStore) GetByID(_ context.Context, id string) (*models.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryRestaurantStore) List(_ context.Context) ([]*models.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	restaurants := make([]*models.Restaurant, 0, len(s.restaurants))
	for _, r := range s.restaurants {
		found := r
		restaurants = append(restaurants, &found)
	}
	sort.Slice(restaurants, func(i, j int) bool {
		return restaurants[i].Name < restaurants[j].Name
	})
	return restaurants, nil
}

func (s *MemoryRestaurantStore) UpdateImageURL(_ context.Context, id, imageURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.restaurants[id]
	if !ok {
		return ErrNotFound
	}
	r.ImageURL = imageURL
	s.restaurants[id] = r
	return nil
}

func (s *MemoryRestaurantStore) CreateTemplate(_ context.Context, template *models.CouponTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.restaurants[template.RestaurantID]; !ok {
		return ErrNotFound
	}
	s.templates[template.ID] = *template
	return nil
}

func (s *MemoryRestaurantStore) ListTemplates(_ context.Context, restaurantID string) ([]*models.CouponTemplate, error) {
	return s.listTemplates(func(t models.CouponTemplate) bool { return t.RestaurantID == restaurantID }), nil
}

func (s *MemoryRestaurantStore) ListActiveTemplates(_ context.Context) ([]*models.CouponTemplate, error) {
	return s.listTemplates(func(t models.CouponTemplate) bool { return t.Active && t.Weight > 0 }), nil
}

func (s *MemoryRestaurantStore) listTemplates(keep func(models.CouponTemplate) bool) []*models.CouponTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var templates []*models.CouponTemplate
	for _, t := range s.templates {
		if keep(t) {
			found := t
			templates = append(templates, &found)
		}
	}
	sort.Slice(templates, func(i, j int) bool {
		if templates[i].CreatedAt.Equal(templates[j].CreatedAt) {
			return templates[i].ID < templates[j].ID
		}
		return templates[i].CreatedAt.Before(templates[j].CreatedAt)
	})
	return templates
}

// MemoryCheckInStore keeps check-ins per user
type MemoryCheckInStore struct {
	mu       sync.RWMutex
	checkIns map[string][]models.CheckIn
}

// NewMemoryCheckInStore creates an empty check-in store
func NewMemoryCheckInStore() *MemoryCheckInStore {
	return &MemoryCheckInStore{checkIns: make(map[string][]models.CheckIn)}
}

func (s *MemoryCheckInStore) Latest(_ context.Context, userID string) (*models.CheckIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.checkIns[userID]
	if len(history) == 0 {
		return nil, ErrNotFound
	}
	latest := history[len(history)-1]
	return &latest, nil
}

func (s *MemoryCheckInStore) Create(_ context.Context, checkIn *models.CheckIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.checkIns[checkIn.UserID] {
		if c.Date == checkIn.Date {
			return ErrAlreadyCheckedIn
		}
	}
	s.checkIns[checkIn.UserID] = append(s.checkIns[checkIn.UserID], *checkIn)
	return nil
}
