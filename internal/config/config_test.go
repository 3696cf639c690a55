package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
  host: 127.0.0.1
database:
  driver: postgres
  host: db
  port: 5432
  user: spin
  password: secret
  dbname: caotun
jwt:
  secret: s3cr3t
coupon:
  timezone: Asia/Taipei
  hide_after_days: 3
`

func TestParse_YAMLAndDefaults(t *testing.T) {
	cfg, err := parse(context.Background(), []byte(sampleYAML), envconfig.MapLookuper(nil))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=db port=5432 user=spin password=secret dbname=caotun sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, 365, cfg.JWT.ExpDays)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Coupon.HideAfterDays)
	assert.Equal(t, "v1", cfg.Offline.CacheVersion)
	assert.False(t, cfg.APNs.Enabled())

	loc, err := cfg.Coupon.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Taipei", loc.String())
}

func TestParse_EnvironmentOverrides(t *testing.T) {
	env := envconfig.MapLookuper(map[string]string{
		"CAOTUN_SERVER_PORT":      "7070",
		"CAOTUN_JWT_SECRET":       "from-env",
		"CAOTUN_MERCHANT_API_KEY": "m-key",
	})

	cfg, err := parse(context.Background(), []byte(sampleYAML), env)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "m-key", cfg.Merchant.APIKey)
}

func TestParse_Invalid(t *testing.T) {
	_, err := parse(context.Background(), []byte("server: ["), envconfig.MapLookuper(nil))
	assert.Error(t, err)

	_, err = parse(context.Background(), []byte("log:\n  level: debug\n"), envconfig.MapLookuper(nil))
	assert.ErrorContains(t, err, "jwt.secret")

	_, err = parse(context.Background(), []byte("jwt:\n  secret: x\ndatabase:\n  driver: sqlite\n"), envconfig.MapLookuper(nil))
	assert.ErrorContains(t, err, "database.driver")

	_, err = parse(context.Background(), []byte("jwt:\n  secret: x\ncoupon:\n  timezone: Mars/Olympus\n"), envconfig.MapLookuper(nil))
	assert.ErrorContains(t, err, "coupon.timezone")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "caotun", cfg.Database.DBName)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestCouponLocation_DefaultsToLocal(t *testing.T) {
	c := CouponConfig{}
	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestParseClient(t *testing.T) {
	cfg, err := parseClient(context.Background(), envconfig.MapLookuper(nil))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Server)
	assert.Equal(t, ".caotun-client.json", cfg.StateFile)
	assert.True(t, cfg.Spin)
	assert.False(t, cfg.CheckIn)
	assert.Equal(t, "Asia/Taipei", cfg.Timezone)

	cfg, err = parseClient(context.Background(), envconfig.MapLookuper(map[string]string{
		"CAOTUN_CLIENT_SERVER":   "https://spin.example.com",
		"CAOTUN_CLIENT_PHONE":    "0912345678",
		"CAOTUN_CLIENT_SPIN":     "false",
		"CAOTUN_CLIENT_CHECK_IN": "true",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://spin.example.com", cfg.Server)
	assert.Equal(t, "0912345678", cfg.Phone)
	assert.False(t, cfg.Spin)
	assert.True(t, cfg.CheckIn)

	_, err = parseClient(context.Background(), envconfig.MapLookuper(map[string]string{
		"CAOTUN_CLIENT_SERVER": "localhost:8080",
	}))
	assert.ErrorContains(t, err, "client.server")
}
