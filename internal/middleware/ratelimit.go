package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what a limited route does when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503. Used where an unthrottled burst is worse than an
	// outage, such as credential checks.
	FailClosed
)

// RateRule is a named fixed-window budget.
type RateRule struct {
	Name   string
	Limit  int
	Window time.Duration
	Policy FailPolicy
}

// Budgets of the limited API routes.
var (
	LoginRule         = RateRule{Name: "login", Limit: 10, Window: 5 * time.Minute, Policy: FailClosed}
	SignupRule        = RateRule{Name: "signup", Limit: 3, Window: 10 * time.Minute, Policy: FailClosed}
	CreatePostRule    = RateRule{Name: "create_post", Limit: 10, Window: 5 * time.Minute, Policy: FailOpen}
	CreateCommentRule = RateRule{Name: "create_comment", Limit: 10, Window: time.Minute, Policy: FailOpen}
	SearchRule        = RateRule{Name: "search", Limit: 30, Window: time.Minute, Policy: FailOpen}
)

var errNoLimiterStore = errors.New("rate limit store not configured")

// RateLimiter counts requests per rule and caller in Redis.
type RateLimiter struct {
	rdb     *redis.Client
	enabled bool
}

// NewRateLimiter returns a limiter over rdb. A disabled limiter admits every
// request without touching Redis.
func NewRateLimiter(rdb *redis.Client, enabled bool) *RateLimiter {
	return &RateLimiter{rdb: rdb, enabled: enabled}
}

// RateDecision is the outcome of one Allow call.
type RateDecision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is the time left in the current window.
	RetryAfter time.Duration
}

// Allow counts one request by caller against rule. The window is created with
// its TTL in the same transaction as the increment, so a counter never
// outlives its window.
func (l *RateLimiter) Allow(ctx context.Context, rule RateRule, caller string) (RateDecision, error) {
	if !l.enabled {
		return RateDecision{Allowed: true, Remaining: rule.Limit}, nil
	}
	if l.rdb == nil {
		return RateDecision{}, errNoLimiterStore
	}

	key := fmt.Sprintf("rl:%s:%s", rule.Name, caller)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, rule.Window)
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return RateDecision{}, err
	}

	count := int(incr.Val())
	d := RateDecision{
		Allowed:    count <= rule.Limit,
		Remaining:  max(rule.Limit-count, 0),
		RetryAfter: ttl.Val(),
	}
	return d, nil
}

// rateCaller keys authenticated requests by account and the rest by IP.
func rateCaller(c *fiber.Ctx) string {
	if claims, ok := ClaimsFromCtx(c); ok {
		return "account:" + strconv.FormatUint(uint64(claims.AccountID), 10)
	}
	return "ip:" + c.IP()
}

// Limit enforces rule on a route and reports the budget in X-RateLimit-*
// headers.
func (l *RateLimiter) Limit(rule RateRule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := l.Allow(c.UserContext(), rule, rateCaller(c))
		if err != nil {
			if rule.Policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limit unavailable, failing closed",
				slog.String("rule", rule.Name),
				slog.String("error", err.Error()),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Service temporarily unavailable, please try again later.",
				"code":  "SERVICE_UNAVAILABLE",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			secs := int(d.RetryAfter.Round(time.Second) / time.Second)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(max(secs, 1)))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
				"code":  "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
