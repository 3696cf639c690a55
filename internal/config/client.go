package config

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sethvargo/go-envconfig"
)

// ClientConfig drives the command-line spin client. Fields read CAOTUN_CLIENT_* variables.
type ClientConfig struct {
	Server    string `env:"SERVER,default=http://localhost:8080"`
	StateFile string `env:"STATE_FILE,default=.caotun-client.json"`
	Phone     string `env:"PHONE"`
	Email     string `env:"EMAIL"`
	// CacheVersion is used when the server's manifest cannot be fetched.
	CacheVersion string `env:"CACHE_VERSION,default=v1"`
	Spin         bool   `env:"SPIN,default=true"`
	CheckIn      bool   `env:"CHECK_IN,default=false"`
	LogLevel     string `env:"LOG_LEVEL,default=info"`

	UserAgent        string `env:"USER_AGENT,default=caotun-spin-client/1.0"`
	ScreenResolution string `env:"SCREEN_RESOLUTION,default=390x844"`
	Timezone         string `env:"TIMEZONE,default=Asia/Taipei"`
}

// LoadClient reads the client configuration from the environment
func LoadClient(ctx context.Context) (*ClientConfig, error) {
	return parseClient(ctx, envconfig.OsLookuper())
}

func parseClient(ctx context.Context, lookuper envconfig.Lookuper) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper("CAOTUN_CLIENT_", lookuper),
	}); err != nil {
		return nil, fmt.Errorf("failed to process client config: %w", err)
	}

	u, err := url.Parse(cfg.Server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("client.server must be an http(s) URL, got %q", cfg.Server)
	}
	return &cfg, nil
}
