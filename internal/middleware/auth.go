// Package middleware provides logging, tracing, metrics, rate limiting and
// authentication middleware for the application.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// Token claims issued by the API.
const (
	TokenIssuer   = "inkwell-api"
	TokenAudience = "inkwell-client"

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrTokenRevoked is returned for tokens whose jti has been blacklisted.
var ErrTokenRevoked = errors.New("token has been revoked")

// TokenClaims is the validated subset of a JWT the API relies on.
type TokenClaims struct {
	AccountID uint
	Username  string
	JTI       string
	Type      string
	ExpiresAt time.Time
}

// Authenticator validates bearer tokens and consults the Redis jti blacklist.
type Authenticator struct {
	secret []byte
	rdb    *redis.Client
}

// NewAuthenticator creates an Authenticator. rdb may be nil, in which case
// revocation is not enforced.
func NewAuthenticator(secret string, rdb *redis.Client) *Authenticator {
	return &Authenticator{secret: []byte(secret), rdb: rdb}
}

// BlacklistKey is the Redis key marking a revoked token id.
func BlacklistKey(jti string) string {
	return "blacklist:" + jti
}

// Parse validates tokenString and returns its claims.
func (a *Authenticator) Parse(ctx context.Context, tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	subStr, ok := claims["sub"].(string)
	if !ok {
		return nil, errors.New("invalid token subject")
	}
	accountID, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil {
		return nil, errors.New("invalid user ID in token")
	}

	out := &TokenClaims{AccountID: uint(accountID), Type: TokenTypeAccess}
	if v, ok := claims["username"].(string); ok {
		out.Username = v
	}
	if v, ok := claims["jti"].(string); ok {
		out.JTI = v
	}
	if v, ok := claims["typ"].(string); ok {
		out.Type = v
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	if a.rdb != nil && out.JTI != "" {
		n, err := a.rdb.Exists(ctx, BlacklistKey(out.JTI)).Result()
		if err == nil && n > 0 {
			return nil, ErrTokenRevoked
		}
	}

	return out, nil
}

// Revoke blacklists the token id until its expiry.
func (a *Authenticator) Revoke(ctx context.Context, claims *TokenClaims) error {
	if a.rdb == nil || claims == nil || claims.JTI == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return a.rdb.Set(ctx, BlacklistKey(claims.JTI), "1", ttl).Err()
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func (a *Authenticator) attach(c *fiber.Ctx, claims *TokenClaims) {
	c.Locals("userID", claims.AccountID)
	c.Locals("claims", claims)
	c.SetUserContext(WithUserID(c.UserContext(), claims.AccountID))
}

// Required rejects requests without a valid access token.
func (a *Authenticator) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "You are not authenticated.",
				"code":  "UNAUTHORIZED",
			})
		}

		claims, err := a.Parse(c.UserContext(), tokenString)
		if err != nil || claims.Type != TokenTypeAccess {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
				"code":  "UNAUTHORIZED",
			})
		}

		a.attach(c, claims)
		return c.Next()
	}
}

// Optional attaches the account when a valid access token is present and
// otherwise lets the request through anonymously.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString, ok := bearerToken(c); ok {
			if claims, err := a.Parse(c.UserContext(), tokenString); err == nil && claims.Type == TokenTypeAccess {
				a.attach(c, claims)
			}
		}
		return c.Next()
	}
}

// ClaimsFromCtx returns the claims attached by Required or Optional.
func ClaimsFromCtx(c *fiber.Ctx) (*TokenClaims, bool) {
	claims, ok := c.Locals("claims").(*TokenClaims)
	return claims, ok
}
