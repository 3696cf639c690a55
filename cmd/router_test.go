package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"caotun-spin-backend/internal/config"
	"caotun-spin-backend/internal/repository"
	"caotun-spin-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMerchantKey = "merchant-secret"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestServer(t *testing.T) (*httptest.Server, *testClock) {
	t.Helper()

	cfg := &config.Config{
		Server:   config.ServerConfig{LoginRPS: 100, LoginBurst: 100},
		Database: config.DatabaseConfig{Driver: "memory"},
		JWT:      config.JWTConfig{Secret: "test-secret", ExpDays: 30},
		Merchant: config.MerchantConfig{APIKey: testMerchantKey},
		Coupon:   config.CouponConfig{HideAfterDays: 2},
		Offline:  config.OfflineConfig{CacheVersion: "v7"},
	}

	clock := &testClock{now: time.Date(2024, 3, 9, 12, 0, 0, 0, services.MealPeriodZone)}
	a, err := newApp(cfg, repository.NewMemoryStores(), nil, nil, nil, clock.Now)
	require.NoError(t, err)

	srv := httptest.NewServer(a.router)
	t.Cleanup(srv.Close)
	return srv, clock
}

func call(t *testing.T, srv *httptest.Server, method, path string, headers map[string]string, body, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestRouter_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	var health map[string]string
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/health", nil, nil, &health))
	assert.Equal(t, "ok", health["status"])

	var db map[string]string
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/health/db", nil, nil, &db))
	assert.Equal(t, "memory", db["driver"])

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_MealPeriodAndManifest(t *testing.T) {
	srv, clock := newTestServer(t)

	var status struct {
		Active   bool `json:"active"`
		Period   struct{ Key, Name string }
		Date     string            `json:"date"`
		Schedule []json.RawMessage `json:"schedule"`
	}
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/api/v1/meal-period", nil, nil, &status))
	assert.True(t, status.Active)
	assert.Equal(t, "lunch", status.Period.Key)
	assert.Equal(t, "2024-03-09", status.Date)
	assert.Len(t, status.Schedule, 5)

	clock.Set(time.Date(2024, 3, 9, 10, 30, 0, 0, services.MealPeriodZone))
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/api/v1/meal-period", nil, nil, &status))
	assert.False(t, status.Active)
	assert.Equal(t, "用餐", status.Period.Name)

	var manifest struct {
		Version      string   `json:"version"`
		StaticCache  string   `json:"static_cache"`
		DynamicCache string   `json:"dynamic_cache"`
		Precache     []string `json:"precache"`
	}
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/api/v1/offline/manifest", nil, nil, &manifest))
	assert.Equal(t, "v7", manifest.Version)
	assert.Equal(t, "caotun-static-v7", manifest.StaticCache)
	assert.Equal(t, "caotun-dynamic-v7", manifest.DynamicCache)
	assert.NotEmpty(t, manifest.Precache)
}

func TestRouter_LoginValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	var errResp map[string]string
	code := call(t, srv, http.MethodPost, "/api/v1/auth/login", nil,
		map[string]any{"phone": "12345", "deviceId": "d"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, services.ErrInvalidPhone.Error(), errResp["error"])

	code = call(t, srv, http.MethodPost, "/api/v1/auth/login", nil,
		map[string]any{"deviceId": "d"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, code)

	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/api/v1/coupons", nil, nil, nil))
}

func TestRouter_MerchantRequiresKey(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/api/v1/merchant/restaurants", nil, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/api/v1/merchant/restaurants",
		map[string]string{"X-Merchant-Key": "wrong"}, nil, nil))
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/api/v1/merchant/restaurants",
		map[string]string{"X-Merchant-Key": testMerchantKey}, nil, nil))
}

func TestRouter_SpinShareRedeemFlow(t *testing.T) {
	srv, clock := newTestServer(t)
	merchant := map[string]string{"X-Merchant-Key": testMerchantKey}

	// Merchant sets up a prize.
	var restaurant struct{ ID string }
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/api/v1/merchant/restaurants", merchant,
		map[string]any{"name": "阿婆肉圓", "address": "南投縣草屯鎮中正路 1 號"}, &restaurant))
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/api/v1/merchant/restaurants/"+restaurant.ID+"/templates", merchant,
		map[string]any{"title": "肉圓買一送一", "description": "限內用", "discount": "BOGO"}, nil))

	assert.Equal(t, http.StatusServiceUnavailable, call(t, srv, http.MethodPost, "/api/v1/merchant/restaurants/"+restaurant.ID+"/image", merchant,
		map[string]any{"content_type": "image/png"}, nil))

	// Player logs in.
	var login struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/api/v1/auth/login", nil,
		map[string]any{"phone": "0912345678", "deviceId": "device-1"}, &login))
	require.NotEmpty(t, login.Token)
	auth := map[string]string{"Authorization": "Bearer " + login.Token}

	// Spin once during lunch.
	var spin struct {
		MealPeriod struct{ Key string } `json:"meal_period"`
		Coupon     struct {
			ID   string `json:"id"`
			Code string `json:"code"`
		} `json:"coupon"`
	}
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/api/v1/spins", auth, nil, &spin))
	assert.Equal(t, "lunch", spin.MealPeriod.Key)
	assert.Len(t, spin.Coupon.Code, 6)
	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, "/api/v1/spins", auth, nil, nil))

	clock.Set(time.Date(2024, 3, 9, 10, 30, 0, 0, services.MealPeriodZone))
	assert.Equal(t, http.StatusForbidden, call(t, srv, http.MethodPost, "/api/v1/spins", auth, nil, nil))
	clock.Set(time.Date(2024, 3, 9, 12, 30, 0, 0, services.MealPeriodZone))

	// Wallet and share.
	var wallet struct {
		Coupons []struct {
			ID      string `json:"id"`
			Expired bool   `json:"expired"`
		} `json:"coupons"`
	}
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/api/v1/coupons", auth, nil, &wallet))
	require.Len(t, wallet.Coupons, 1)
	assert.Equal(t, spin.Coupon.ID, wallet.Coupons[0].ID)
	assert.False(t, wallet.Coupons[0].Expired)

	var share services.SharePayload
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet,
		"/api/v1/coupons/"+spin.Coupon.ID+"/share?url=https://spin.example.com", auth, nil, &share))
	assert.Contains(t, share.Text, "🏪 阿婆肉圓\n📝 限內用\n")
	assert.Equal(t, "https://spin.example.com", share.Native.URL)
	assert.True(t, strings.HasPrefix(share.LineURL, "https://social-plugins.line.me/lineit/share?url=https%3A%2F%2Fspin.example.com&text="))

	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodGet, "/api/v1/coupons/missing/share", auth, nil, nil))

	// Merchant redeems at the counter.
	redeemPath := "/api/v1/merchant/restaurants/" + restaurant.ID + "/redeem"
	assert.Equal(t, http.StatusForbidden, call(t, srv, http.MethodPost, "/api/v1/merchant/restaurants/other/redeem", merchant,
		map[string]any{"code": spin.Coupon.Code}, nil))
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, redeemPath, merchant,
		map[string]any{"code": strings.ToLower(spin.Coupon.Code)}, nil))
	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, redeemPath, merchant,
		map[string]any{"code": spin.Coupon.Code}, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPost, redeemPath, merchant,
		map[string]any{"code": ""}, nil))
}

func TestRouter_CheckInAndPushToken(t *testing.T) {
	srv, _ := newTestServer(t)

	var login struct {
		Token string `json:"token"`
	}
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/api/v1/auth/login", nil,
		map[string]any{"email": "diner@example.com", "deviceId": "device-1"}, &login))
	auth := map[string]string{"Authorization": "Bearer " + login.Token}

	var checkIn struct {
		CheckIn struct {
			StreakDays int `json:"streak_days"`
		} `json:"check_in"`
	}
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/api/v1/check-ins", auth, nil, &checkIn))
	assert.Equal(t, 1, checkIn.CheckIn.StreakDays)
	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, "/api/v1/check-ins", auth, nil, nil))

	assert.Equal(t, http.StatusNoContent, call(t, srv, http.MethodPut, "/api/v1/users/me/push-token", auth,
		map[string]any{"push_token": "apns-token"}, nil))
}
