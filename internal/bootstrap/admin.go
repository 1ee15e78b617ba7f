// Package bootstrap runs one-off tasks before the API starts serving.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/service"
)

// EnsureRootAdmin creates the ROOT_ADMIN_* account when configured and makes
// sure it carries admin rights. It does nothing when no username is set.
func EnsureRootAdmin(ctx context.Context, cfg *config.Config, accounts *service.AccountService) error {
	if cfg == nil || accounts == nil {
		return nil
	}
	username := strings.TrimSpace(cfg.RootAdminUsername)
	if username == "" {
		return nil
	}
	if cfg.RootAdminPassword == "" {
		return fmt.Errorf("ROOT_ADMIN_PASSWORD must be set when ROOT_ADMIN_USERNAME is %q", username)
	}
	email := strings.TrimSpace(strings.ToLower(cfg.RootAdminEmail))
	if email == "" {
		email = username + "@inkwell.local"
	}

	account, err := accounts.EnsureAdmin(ctx, service.RegisterInput{
		Username: username,
		Email:    email,
		Password: cfg.RootAdminPassword,
	})
	if err != nil {
		return fmt.Errorf("ensure root admin %s: %w", username, err)
	}

	middleware.Logger.Info("Root admin ensured",
		slog.String("username", account.Username),
		slog.Uint64("account_id", uint64(account.ID)),
	)
	return nil
}
