package app

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 5*time.Hour, cfg.JWTTTL)
	assert.Equal(t, time.Duration(0), cfg.JWTClockSkew)
	assert.Equal(t, 30*time.Second, cfg.PrincipalCacheTTL)
	assert.Equal(t, 10, cfg.LoginRateLimit)
	assert.Equal(t, "default", cfg.AuditQueue)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_TTL", "30m")
	t.Setenv("JWT_CLOCK_SKEW", "5s")
	t.Setenv("LOGIN_RATE_LIMIT", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 30*time.Minute, cfg.JWTTTL)
	assert.Equal(t, 5*time.Second, cfg.JWTClockSkew)
	assert.Zero(t, cfg.LoginRateLimit)
}

func TestConfigClientOptions(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_PASSWORD", "pw")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("PG_MAX_CONNS", "25")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	pool := cfg.PoolOptions()
	assert.Equal(t, int32(25), pool.MaxConns)
	assert.Equal(t, 5*time.Minute, pool.MaxConnIdleTime)

	redisOpts := cfg.RedisOptions()
	assert.Equal(t, "redis:6380", redisOpts.Addr)
	assert.Equal(t, "pw", redisOpts.Password)
	assert.Equal(t, 2, redisOpts.DB)

	queue := cfg.AsynqRedis()
	assert.Equal(t, redisOpts.Addr, queue.Addr)
	assert.Equal(t, redisOpts.DB, queue.DB)
	assert.Equal(t, 5, cfg.WorkerConcurrency)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := Config{JWTSecret: testJWTSecret, JWTTTL: time.Hour}
	require.NoError(t, base.Validate())

	cases := map[string]func(*Config){
		"short secret":  func(c *Config) { c.JWTSecret = "short" },
		"zero ttl":      func(c *Config) { c.JWTTTL = 0 },
		"negative skew": func(c *Config) { c.JWTClockSkew = -time.Second },
		"negative rate": func(c *Config) { c.LoginRateLimit = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoggerHonoursLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"msg":"shown"`)
}

func TestLoggerFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogLevel: "loud"}, &buf)
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestInTestModeUnderGuard(t *testing.T) {
	assert.True(t, InTestMode())
	t.Setenv(testModeEnv, "0")
	assert.False(t, InTestMode())
}
