package config

import (
	"context"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server" env:",prefix=SERVER_"`
	Database DatabaseConfig `yaml:"database" env:",prefix=DB_"`
	AWS      AWSConfig      `yaml:"aws" env:",prefix=AWS_"`
	JWT      JWTConfig      `yaml:"jwt" env:",prefix=JWT_"`
	Log      LogConfig      `yaml:"log" env:",prefix=LOG_"`
	Merchant MerchantConfig `yaml:"merchant" env:",prefix=MERCHANT_"`
	APNs     APNsConfig     `yaml:"apns" env:",prefix=APNS_"`
	Coupon   CouponConfig   `yaml:"coupon" env:",prefix=COUPON_"`
	Offline  OfflineConfig  `yaml:"offline" env:",prefix=OFFLINE_"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port      int     `yaml:"port" env:"PORT,overwrite"`
	Host      string  `yaml:"host" env:"HOST,overwrite"`
	StaticDir string  `yaml:"static_dir" env:"STATIC_DIR,overwrite"`
	LoginRPS  float64 `yaml:"login_rps" env:"LOGIN_RPS,overwrite"`
	// LoginBurst caps bursts per client IP on the login endpoint.
	LoginBurst int `yaml:"login_burst" env:"LOGIN_BURST,overwrite"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER,overwrite"` // "postgres" or "memory"
	Host     string `yaml:"host" env:"HOST,overwrite"`
	Port     int    `yaml:"port" env:"PORT,overwrite"`
	User     string `yaml:"user" env:"USER,overwrite"`
	Password string `yaml:"password" env:"PASSWORD,overwrite"`
	DBName   string `yaml:"dbname" env:"NAME,overwrite"`
	SSLMode  string `yaml:"sslmode" env:"SSL_MODE,overwrite"`
}

// AWSConfig holds AWS configuration for restaurant image uploads
type AWSConfig struct {
	Region    string `yaml:"region" env:"REGION,overwrite"`
	S3Bucket  string `yaml:"s3_bucket" env:"S3_BUCKET,overwrite"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY,overwrite"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY,overwrite"`
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT,overwrite"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret  string `yaml:"secret" env:"SECRET,overwrite"`
	ExpDays int    `yaml:"exp_days" env:"EXP_DAYS,overwrite"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL,overwrite"`
}

// MerchantConfig holds the merchant portal shared key
type MerchantConfig struct {
	APIKey string `yaml:"api_key" env:"API_KEY,overwrite"`
}

// APNsConfig holds Apple push configuration. Push is disabled when KeyFile is empty.
type APNsConfig struct {
	KeyFile    string `yaml:"key_file" env:"KEY_FILE,overwrite"`
	KeyID      string `yaml:"key_id" env:"KEY_ID,overwrite"`
	TeamID     string `yaml:"team_id" env:"TEAM_ID,overwrite"`
	Topic      string `yaml:"topic" env:"TOPIC,overwrite"`
	Production bool   `yaml:"production" env:"PRODUCTION,overwrite"`
}

// CouponConfig holds coupon visibility rules
type CouponConfig struct {
	// Timezone is an IANA name; empty means the host's local zone.
	Timezone      string `yaml:"timezone" env:"TIMEZONE,overwrite"`
	HideAfterDays int    `yaml:"hide_after_days" env:"HIDE_AFTER_DAYS,overwrite"`
}

// OfflineConfig holds the web client cache settings
type OfflineConfig struct {
	CacheVersion string `yaml:"cache_version" env:"CACHE_VERSION,overwrite"`
}

// Load reads configuration from a YAML file and applies CAOTUN_* environment overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return parse(context.Background(), data, envconfig.OsLookuper())
}

func parse(ctx context.Context, data []byte, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.PrefixLookuper("CAOTUN_", lookuper),
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       8080,
			Host:       "0.0.0.0",
			LoginRPS:   1,
			LoginBurst: 5,
		},
		Database: DatabaseConfig{
			Driver:  "memory",
			SSLMode: "disable",
		},
		JWT:     JWTConfig{ExpDays: 365},
		Log:     LogConfig{Level: "info"},
		Coupon:  CouponConfig{HideAfterDays: 2},
		Offline: OfflineConfig{CacheVersion: "v1"},
	}
}

// Validate checks cross-field requirements
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver)
	}
	if c.Coupon.HideAfterDays < 0 {
		return fmt.Errorf("coupon.hide_after_days must not be negative")
	}
	if _, err := c.Coupon.Location(); err != nil {
		return err
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Location resolves the coupon expiry zone
func (c *CouponConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid coupon.timezone: %w", err)
	}
	return loc, nil
}

// Enabled reports whether APNs push is configured
func (c *APNsConfig) Enabled() bool {
	return c.KeyFile != ""
}
