package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoad() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "AGRIHUB",
		SkipFiles: true,
		SkipFlags: true,
	})
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("AGRIHUB_DATABASE_URL", "postgres://agrihub@localhost/agrihub")
	t.Setenv("AGRIHUB_API_KEY_PEPPER", "pepper")

	cfg, err := testLoad()
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Sessions.TTL)
	assert.Equal(t, time.Minute, cfg.Sessions.SweepInterval)
	assert.Equal(t, 100000, cfg.Sessions.Max)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, "ip", cfg.RateLimit.KeyBy)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.Equal(t, 10*time.Second, cfg.Health.Interval)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("AGRIHUB_DATABASE_URL", "postgres://agrihub@db/agrihub")
	t.Setenv("AGRIHUB_API_KEY_PEPPER", "pepper")
	t.Setenv("AGRIHUB_SESSIONS_TTL", "2h")
	t.Setenv("AGRIHUB_SESSIONS_MAX", "50")

	cfg, err := testLoad()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.Sessions.TTL)
	assert.Equal(t, 50, cfg.Sessions.Max)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://render@db/agrihub")
	t.Setenv("PORT", "10000")
	t.Setenv("AGRIHUB_API_KEY_PEPPER", "pepper")

	cfg, err := testLoad()
	require.NoError(t, err)

	assert.Equal(t, "postgres://render@db/agrihub", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:10000", cfg.Addr)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL:  "postgres://agrihub@db/agrihub",
			APIKeyPepper: "pepper",
			Sessions:     SessionConfig{TTL: time.Hour, SweepInterval: time.Minute},
			RateLimit:    RateLimitConfig{KeyBy: "ip"},
		}
	}

	for _, tt := range []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{name: "Valid", mutate: func(*Config) {}},
		{name: "NoDatabase", mutate: func(c *Config) { c.DatabaseURL = "" }, errMsg: "database URL is required"},
		{name: "NoPepper", mutate: func(c *Config) { c.APIKeyPepper = "" }, errMsg: "API key pepper is required"},
		{name: "BadRateLimitKey", mutate: func(c *Config) { c.RateLimit.KeyBy = "user" }, errMsg: `unknown rate limit key "user"`},
		{name: "NoSweep", mutate: func(c *Config) { c.Sessions.SweepInterval = 0 }, errMsg: "sweep interval"},
		{name: "NoTTLNoSweep", mutate: func(c *Config) { c.Sessions = SessionConfig{} }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
