package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-authcore/authcore/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeMetrics(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		cfg := &config.Config{MetricsEnabled: enabled}
		m := initializeMetrics(cfg)
		require.NotNil(t, m)
	}
}

func TestInitializeMetricsCacheDisabled(t *testing.T) {
	ctx := context.Background()

	// Metrics disabled - no cache
	c, err := initializeMetricsCache(
		ctx,
		&config.Config{MetricsEnabled: false, MetricsGaugeUpdateEnabled: true},
	)
	require.NoError(t, err)
	assert.Nil(t, c)

	// Gauge updates disabled - no cache
	c, err = initializeMetricsCache(
		ctx,
		&config.Config{MetricsEnabled: true, MetricsGaugeUpdateEnabled: false},
	)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestInitializeMetricsCacheMemory(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		MetricsEnabled:            true,
		MetricsGaugeUpdateEnabled: true,
		MetricsCacheType:          config.MetricsCacheTypeMemory,
	}
	c, err := initializeMetricsCache(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, c)
	_ = c.Close()
}

func TestInitializeTokenProvider(t *testing.T) {
	cfg := &config.Config{
		JWTSecret: "0123456789abcdef0123456789abcdef",
		BaseURL:   "https://auth.example.com",
	}
	provider, err := initializeTokenProvider(cfg)
	require.NoError(t, err)
	require.NotNil(t, provider)
}

func TestInitializeRateLimitRedisClientDisabled(t *testing.T) {
	ctx := context.Background()

	client, err := initializeRateLimitRedisClient(ctx, &config.Config{EnableRateLimit: false})
	require.NoError(t, err)
	assert.Nil(t, client)

	client, err = initializeRateLimitRedisClient(ctx, &config.Config{
		EnableRateLimit: true,
		RateLimitStore:  "memory",
	})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestSetupRateLimitingDisabled(t *testing.T) {
	limiters := setupRateLimiting(&config.Config{EnableRateLimit: false}, nil, nil)
	require.NotNil(t, limiters.login)
	require.NotNil(t, limiters.token)

	// Verify noop middlewares don't panic
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	assert.NotPanics(t, func() { limiters.login(c) })
}

func TestSetupRateLimitingMemory(t *testing.T) {
	cfg := &config.Config{
		EnableRateLimit: true,
		RateLimitStore:  "memory",
		LoginRateLimit:  5,
		TokenRateLimit:  20,
	}
	limiters := setupRateLimiting(cfg, nil, nil)
	require.NotNil(t, limiters.login)
	require.NotNil(t, limiters.token)
}

func TestCreateHTTPServer(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	srv := createHTTPServer(&config.Config{Port: "8080"}, handler)
	require.NotNil(t, srv)
	assert.Equal(t, ":8080", srv.Addr)

	srv = createHTTPServer(&config.Config{Port: "127.0.0.1:9090"}, handler)
	assert.Equal(t, "127.0.0.1:9090", srv.Addr)
}

func TestGinModeMap(t *testing.T) {
	assert.Equal(t, gin.DebugMode, ginModeMap[true])
	assert.Equal(t, gin.ReleaseMode, ginModeMap[false])
}

func TestErrorLogger(t *testing.T) {
	el := newErrorLogger()
	require.NotNil(t, el)
	assert.NotNil(t, el.lastErrorTimes)

	// Both calls should not panic
	assert.NotPanics(t, func() { el.logIfNeeded("test_op", assert.AnError) })
	assert.NotPanics(t, func() { el.logIfNeeded("test_op", assert.AnError) })
}
