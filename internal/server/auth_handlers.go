package server

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

// tokenPair is returned by login, signup and refresh.
type tokenPair struct {
	Access  string          `json:"access"`
	Refresh string          `json:"refresh"`
	Account *models.Account `json:"account,omitempty"`
}

// Signup handles POST /api/users
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username, email, and password are required"))
	}

	account, err := s.accountService.Register(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}

	pair, err := s.issueTokens(account)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return c.Status(fiber.StatusCreated).JSON(pair)
}

// Login handles POST /api/token
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	account, err := s.accountService.Authenticate(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	pair, err := s.issueTokens(account)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return c.JSON(pair)
}

// Refresh handles POST /api/token/refresh. The presented refresh token is
// revoked and a new pair is issued.
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.BodyParser(&req); err != nil || req.Refresh == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("refresh is required"))
	}

	claims, err := s.auth.Parse(c.UserContext(), req.Refresh)
	if err != nil || claims.Type != middleware.TokenTypeRefresh {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Token is invalid or expired"))
	}

	r, err := s.accountService.Resolve(c.UserContext(), claims.AccountID)
	if err != nil {
		return respondError(c, err)
	}
	account, err := s.accountService.Me(c.UserContext(), r)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.auth.Revoke(c.UserContext(), claims); err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	pair, err := s.issueTokens(account)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	pair.Account = nil
	return c.JSON(pair)
}

// Verify handles POST /api/token/verify
func (s *Server) Verify(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("token is required"))
	}
	if _, err := s.auth.Parse(c.UserContext(), req.Token); err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Token is invalid or expired"))
	}
	return c.JSON(fiber.Map{})
}

// Logout handles POST /api/token/logout. The access token used for the call
// is revoked, and so is the refresh token when one is sent along.
func (s *Server) Logout(c *fiber.Ctx) error {
	ctx := c.UserContext()
	claims, ok := middleware.ClaimsFromCtx(c)
	if !ok {
		return respondError(c, models.NewUnauthorizedError(""))
	}
	if err := s.auth.Revoke(ctx, claims); err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.BodyParser(&req); err == nil && req.Refresh != "" {
		if refresh, err := s.auth.Parse(ctx, req.Refresh); err == nil && refresh.AccountID == claims.AccountID {
			if err := s.auth.Revoke(ctx, refresh); err != nil {
				return respondError(c, models.NewInternalError(err))
			}
		}
	}

	return c.JSON(fiber.Map{"message": "Successfully logged out"})
}

// GetMe handles GET /api/users/me
func (s *Server) GetMe(c *fiber.Ctx) error {
	account, err := s.accountService.Me(c.UserContext(), requesterFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(account)
}

// ListAccounts handles GET /api/users
func (s *Server) ListAccounts(c *fiber.Ctx) error {
	page, err := s.accountService.List(c.UserContext(), requesterFrom(c), s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// DeleteAccount handles DELETE /api/users/:id
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := s.accountService.Delete(c.UserContext(), requesterFrom(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) issueTokens(account *models.Account) (*tokenPair, error) {
	access, err := s.generateToken(account, middleware.TokenTypeAccess, accessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.generateToken(account, middleware.TokenTypeRefresh, refreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &tokenPair{Access: access, Refresh: refresh, Account: account}, nil
}

// generateToken creates a signed JWT of the given type for account.
func (s *Server) generateToken(account *models.Account, typ string, ttl time.Duration) (string, error) {
	if s.config.JWTSecret == "" {
		return "", errors.New("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(account.ID), 10),
		"username": account.Username,
		"email":    account.Email,
		"iss":      middleware.TokenIssuer,
		"aud":      middleware.TokenAudience,
		"typ":      typ,
		"exp":      now.Add(ttl).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      generateJTI(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// generateJTI creates a unique JWT ID so single tokens can be revoked.
func generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String())
}
