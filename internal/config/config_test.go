package config

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"APP_PORT", "OCCUPANCY_THRESHOLD", "PROCESS_INTERVAL", "RESERVATION_EXPIRY", "DB_HOST", "JWT_SECRET", "AUTH_REQUIRED"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	assert.Equal(t, ":5000", cfg.Addr())
	assert.Equal(t, 900, cfg.OccupancyThreshold)
	assert.Equal(t, 20*time.Millisecond, cfg.ProcessInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.PreviewCacheTTL)
	assert.Equal(t, ExpiryEnforced, cfg.ReservationExpiry)
	assert.False(t, cfg.AdvisoryExpiry())
	assert.False(t, cfg.DBEnabled())
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "8081")
	t.Setenv("OCCUPANCY_THRESHOLD", "1200")
	t.Setenv("PROCESS_INTERVAL", "40ms")
	t.Setenv("RESERVATION_EXPIRY", "Advisory")
	t.Setenv("DB_HOST", "mysql")
	t.Setenv("AUTH_REQUIRED", "yes")
	t.Setenv("JWT_SECRET", "prod-secret")

	cfg := Load()

	assert.Equal(t, ":8081", cfg.Addr())
	assert.Equal(t, 1200, cfg.OccupancyThreshold)
	assert.Equal(t, 40*time.Millisecond, cfg.ProcessInterval)
	assert.True(t, cfg.AdvisoryExpiry())
	assert.True(t, cfg.DBEnabled())
	assert.True(t, cfg.AuthRequired)
	assert.Equal(t, "prod-secret", cfg.JWTSecret)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_AuthRequiredNeedsSecret(t *testing.T) {
	t.Setenv("AUTH_REQUIRED", "true")
	t.Setenv("JWT_SECRET", "")

	cfg := Load()

	assert.Empty(t, cfg.JWTSecret, "no development fallback when tokens are enforced")
	assert.ErrorIs(t, cfg.Validate(), ErrMissingJWTSecret)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("RESERVATION_EXPIRY", "sometimes")
	t.Setenv("OCCUPANCY_THRESHOLD", "lots")
	t.Setenv("FRAME_WIDTH", "1100")
	t.Setenv("FRAME_HEIGHT", "")

	cfg := Load()

	assert.Equal(t, ExpiryEnforced, cfg.ReservationExpiry)
	assert.Equal(t, 900, cfg.OccupancyThreshold)
	assert.Zero(t, cfg.FrameWidth, "width without height is ignored")
}

func TestRedacted_HidesSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cr3t")
	t.Setenv("DB_PASS", "hunter2")
	cfg := Load()

	red := cfg.Redacted()
	for _, v := range red {
		assert.NotEqual(t, "s3cr3t", v)
		assert.NotEqual(t, "hunter2", v)
	}
	assert.Equal(t, true, red["jwtSecretProvided"])
}

func Test_envHelpers(t *testing.T) {
	tests := []struct {
		name string
		val  string
		want bool
	}{
		{"unset uses default", "", true},
		{"on", "on", true},
		{"off", "off", false},
		{"garbage uses default", "maybe", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SMARTPARK_TEST_BOOL", tt.val)
			assert.Equal(t, tt.want, envBool("SMARTPARK_TEST_BOOL", true))
		})
	}

	t.Setenv("SMARTPARK_TEST_DUR", "1m30s")
	assert.Equal(t, 90*time.Second, envDur("SMARTPARK_TEST_DUR", time.Second))
	t.Setenv("SMARTPARK_TEST_DUR", "soon")
	assert.Equal(t, time.Second, envDur("SMARTPARK_TEST_DUR", time.Second))

	t.Setenv("SMARTPARK_TEST_BOOL", " Yes ")
	assert.True(t, envBool("SMARTPARK_TEST_BOOL", false), "case and spaces are ignored")
	t.Setenv("SMARTPARK_TEST_INT", " 42 ")
	assert.Equal(t, 42, envInt("SMARTPARK_TEST_INT", 7))
	t.Setenv("SMARTPARK_TEST_INT", "forty")
	assert.Equal(t, 7, envInt("SMARTPARK_TEST_INT", 7))
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	rl := LoadRateLimitConfig()

	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 10*time.Second, rl.TTL)
}

func TestLoadRateLimitConfig_Burst(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "30")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "")
	t.Setenv("RATE_LIMIT_TTL", "")

	rl := LoadRateLimitConfig()

	assert.Equal(t, 5, rl.Capacity)
	assert.Equal(t, time.Second, rl.RefillInterval)
	assert.Equal(t, 10*time.Minute, rl.TTL)
	assert.Equal(t, "ip_route", rl.KeyStrategy)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	cc := LoadCacheConfig()
	assert.True(t, cc.Methods["GET"])
	assert.True(t, cc.Methods["HEAD"])
	assert.Equal(t, 500*time.Millisecond, cc.TTL)
}

func TestNewRedisClient_Unconfigured(t *testing.T) {
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_ADDR", "")
	assert.Nil(t, NewRedisClient())
}

func TestSetupLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Unsetenv("DEBUG")

	SetupLogger("warn", "prod")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	SetupLogger("nonsense", "prod")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	t.Setenv("DEBUG", "1")
	SetupLogger("error", "prod")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
