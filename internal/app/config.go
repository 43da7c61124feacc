package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (AGRIHUB_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (AGRIHUB_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.agrihub.in/images)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (AGRIHUB_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Sessions     SessionConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Health       HealthConfig
	Graceful     GracefulConfig
}

// SessionConfig controls in-memory cart sessions.
type SessionConfig struct {
	TTL           time.Duration `default:"24h" usage:"Idle time after which a cart session is dropped"`
	SweepInterval time.Duration `default:"1m"  usage:"How often idle cart sessions are swept" flag:"session-sweep-interval"`
	Max           int           `default:"100000" usage:"Maximum live cart sessions (0 = unlimited)"`
	SecureCookie  bool          `default:"false" usage:"Mark the cart cookie Secure" flag:"secure-cookie"`
}

// RateLimitConfig controls the sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	KeyBy  string        `default:"ip"  usage:"Rate limit key: ip, or session (live cart sessions only; unknown session IDs fall back to ip)" flag:"rate-limit-key"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (the cart cookie)" flag:"cors-credentials"`
}

// HealthConfig controls background health checks.
type HealthConfig struct {
	Interval      time.Duration `default:"10s"   usage:"Health check interval" flag:"health-interval"`
	MaxGoroutines int           `default:"10000" usage:"Liveness goroutine threshold" flag:"health-max-goroutines"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "AGRIHUB",
		Files:     []string{"config.yaml", "/etc/agrihub/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set AGRIHUB_DATABASE_URL or DATABASE_URL")
	}
	if c.APIKeyPepper == "" {
		return errors.New("API key pepper is required: set AGRIHUB_API_KEY_PEPPER")
	}
	switch c.RateLimit.KeyBy {
	case "ip", "session":
	default:
		return errors.Errorf("unknown rate limit key %q", c.RateLimit.KeyBy)
	}
	if c.Sessions.TTL > 0 && c.Sessions.SweepInterval <= 0 {
		return errors.New("session sweep interval must be positive when TTL is set")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's AGRIHUB_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
