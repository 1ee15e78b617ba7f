package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

var twoPerMinute = RateRule{Name: "login", Limit: 2, Window: time.Minute, Policy: FailClosed}

func TestRateLimiter_Disabled(t *testing.T) {
	d, err := NewRateLimiter(nil, false).Allow(context.Background(), twoPerMinute, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimiter_NoStore(t *testing.T) {
	_, err := NewRateLimiter(nil, true).Allow(context.Background(), twoPerMinute, "ip:1.2.3.4")
	assert.ErrorIs(t, err, errNoLimiterStore)
}

func TestRateLimiter_CountsWithinWindow(t *testing.T) {
	mr, rdb := setupRedis(t)
	l := NewRateLimiter(rdb, true)
	ctx := context.Background()

	for want := 1; want >= 0; want-- {
		d, err := l.Allow(ctx, twoPerMinute, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, want, d.Remaining)
	}
	d, err := l.Allow(ctx, twoPerMinute, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	// Other callers have their own budget.
	d, err = l.Allow(ctx, twoPerMinute, "ip:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	assert.True(t, mr.Exists("rl:login:ip:1.2.3.4"))
	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("rl:login:ip:1.2.3.4"))

	d, err = l.Allow(ctx, twoPerMinute, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimiter_Limit(t *testing.T) {
	_, rdb := setupRedis(t)
	l := NewRateLimiter(rdb, true)
	rule := RateRule{Name: "create_post", Limit: 1, Window: time.Minute}

	app := fiber.New()
	app.Post("/posts", l.Limit(rule), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/posts", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	resp, err = app.Test(httptest.NewRequest("POST", "/posts", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get(fiber.HeaderRetryAfter))
}

func TestRateLimiter_FailPolicy(t *testing.T) {
	mr, rdb := setupRedis(t)
	l := NewRateLimiter(rdb, true)
	mr.Close()

	app := fiber.New()
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Post("/token", l.Limit(LoginRule), ok)
	app.Post("/users", l.Limit(SignupRule), ok)
	app.Get("/search", l.Limit(SearchRule), ok)

	for _, path := range []string{"/token", "/users"} {
		resp, err := app.Test(httptest.NewRequest("POST", path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode, path)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/search", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
