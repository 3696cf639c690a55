package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"caotun-spin-backend/internal/client"
	"caotun-spin-backend/internal/config"
	"caotun-spin-backend/internal/models"
	"caotun-spin-backend/internal/offline"
	"caotun-spin-backend/internal/repository"
	"caotun-spin-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newShellServer serves the API plus an app shell build, with one prize on the wheel
func newShellServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	for _, p := range offline.PrecacheURLs() {
		if p == "/" {
			continue
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, filepath.FromSlash(p)), []byte("shell"+p), 0o644))
	}

	cfg := &config.Config{
		Server:   config.ServerConfig{StaticDir: dir, LoginRPS: 100, LoginBurst: 100},
		Database: config.DatabaseConfig{Driver: "memory"},
		JWT:      config.JWTConfig{Secret: "test-secret", ExpDays: 30},
		Coupon:   config.CouponConfig{HideAfterDays: 2},
		Offline:  config.OfflineConfig{CacheVersion: "v7"},
	}

	stores := repository.NewMemoryStores()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, stores.Restaurants.Create(ctx, &models.Restaurant{
		ID: "r-1", Name: "阿婆肉圓", Address: "南投縣草屯鎮中正路 1 號", CreatedAt: created,
	}))
	require.NoError(t, stores.Restaurants.CreateTemplate(ctx, &models.CouponTemplate{
		ID: "t-1", RestaurantID: "r-1", Title: "肉圓買一送一", Discount: "BOGO", Weight: 1, Active: true, CreatedAt: created,
	}))

	clock := &testClock{now: time.Date(2024, 3, 9, 12, 0, 0, 0, services.MealPeriodZone)}
	a, err := newApp(cfg, stores, nil, nil, nil, clock.Now)
	require.NoError(t, err)

	srv := httptest.NewServer(a.router)
	t.Cleanup(srv.Close)
	return srv
}

func clientConfig(srv *httptest.Server, stateFile string) *config.ClientConfig {
	return &config.ClientConfig{
		Server:           srv.URL,
		StateFile:        stateFile,
		CacheVersion:     "v1",
		Spin:             true,
		UserAgent:        "caotun-spin-client/test",
		ScreenResolution: "390x844",
		Timezone:         "Asia/Taipei",
	}
}

func TestStaticHandler_ServesIndexInPlace(t *testing.T) {
	srv := newShellServer(t)

	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := noRedirect.Get(srv.URL + "/index.html")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRunClient_SpinSession(t *testing.T) {
	srv := newShellServer(t)
	ctx := context.Background()
	stateFile := filepath.Join(t.TempDir(), "state.json")

	cfg := clientConfig(srv, stateFile)
	cfg.Phone = "0912345678"
	cfg.CheckIn = true

	var out bytes.Buffer
	require.NoError(t, runClient(ctx, cfg, &out))
	assert.Contains(t, out.String(), "✅ 連續簽到 1 天")
	assert.Contains(t, out.String(), "🍱 午餐 2024-03-09")
	assert.Contains(t, out.String(), "🎉 肉圓買一送一｜阿婆肉圓")
	assert.Contains(t, out.String(), "🎫 優惠券 1 張")

	// The contact and device id persist for the next run.
	store := client.NewFileStore(stateFile)
	phone, ok, err := store.Get(client.KeyLoginPhone)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0912345678", phone)
	deviceID, ok, err := store.Get(client.KeyDeviceID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, services.Fingerprint(models.DeviceInfo{
		UserAgent: cfg.UserAgent, ScreenResolution: cfg.ScreenResolution, Timezone: cfg.Timezone,
	}), deviceID)

	// A second run logs in with the remembered contact and hits both once-only rules.
	out.Reset()
	require.NoError(t, runClient(ctx, clientConfig(srv, stateFile), &out))
	assert.Contains(t, out.String(), "這個時段已經轉過了")
	assert.Contains(t, out.String(), "🎫 優惠券 1 張")

	cfg = clientConfig(srv, stateFile)
	cfg.CheckIn = true
	out.Reset()
	require.NoError(t, runClient(ctx, cfg, &out))
	assert.Contains(t, out.String(), "今天已經簽到過了")
}

func TestRunClient_RejectsInvalidContactLocally(t *testing.T) {
	srv := newShellServer(t)

	cfg := clientConfig(srv, filepath.Join(t.TempDir(), "state.json"))
	cfg.Email = "王　小明@example.com"

	err := runClient(context.Background(), cfg, &bytes.Buffer{})
	assert.ErrorContains(t, err, client.MsgInvalidEmail)
}

func TestRunClient_NoContact(t *testing.T) {
	srv := newShellServer(t)

	cfg := clientConfig(srv, filepath.Join(t.TempDir(), "state.json"))
	err := runClient(context.Background(), cfg, &bytes.Buffer{})
	assert.ErrorContains(t, err, client.MsgContactRequired)
}
