package service

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountService_Register_Validation(t *testing.T) {
	t.Parallel()

	svc := NewAccountService(nil, nil)
	cases := map[string]RegisterInput{
		"short username":  {Username: "ab", Email: "ab@example.com", Password: "Str0ng!pass"},
		"bad email":       {Username: "alice", Email: "nope", Password: "Str0ng!pass"},
		"weak password":   {Username: "alice", Email: "alice@example.com", Password: "password"},
		"no special char": {Username: "alice", Email: "alice@example.com", Password: "Passw0rdxx"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Register(context.Background(), in)
			assertValidationError(t, err)
		})
	}
}

func TestAccountService_Scenario(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	account, err := a.accounts.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "  Alice@Example.com ",
		Password: "Str0ng!pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", account.Email)
	assert.NotEqual(t, "Str0ng!pass", account.Password)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := a.accounts.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "Str0ng!pass"})
		assertCode(t, err, models.CodeConflict)
	})

	t.Run("authenticate", func(t *testing.T) {
		got, err := a.accounts.Authenticate(ctx, "alice", "Str0ng!pass")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)

		_, err = a.accounts.Authenticate(ctx, "alice", "wrong")
		assertCode(t, err, models.CodeUnauthorized)
		_, err = a.accounts.Authenticate(ctx, "nobody", "Str0ng!pass")
		assertCode(t, err, models.CodeUnauthorized)
	})

	t.Run("resolve carries the profile", func(t *testing.T) {
		r, err := a.accounts.Resolve(ctx, account.ID)
		require.NoError(t, err)
		assert.True(t, r.Authenticated())
		assert.NotZero(t, r.ProfileID)
		assert.False(t, r.IsAdmin)

		_, err = a.accounts.Resolve(ctx, 9999)
		assertCode(t, err, models.CodeUnauthorized)
	})

	t.Run("admin bootstrap is idempotent", func(t *testing.T) {
		in := RegisterInput{Username: "root", Email: "root@example.com", Password: "Str0ng!pass"}
		first, err := a.accounts.EnsureAdmin(ctx, in)
		require.NoError(t, err)
		second, err := a.accounts.EnsureAdmin(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.True(t, second.IsAdmin)
	})

	t.Run("list is admin only", func(t *testing.T) {
		alice, err := a.accounts.Resolve(ctx, account.ID)
		require.NoError(t, err)
		_, err = a.accounts.List(ctx, alice, models.NewPageRequest(1, 10))
		assertCode(t, err, models.CodeForbidden)

		admin := a.admin(t, "root")
		page, err := a.accounts.List(ctx, admin, models.NewPageRequest(1, 10))
		require.NoError(t, err)
		assert.Len(t, page.Results, 2)
	})

	t.Run("delete", func(t *testing.T) {
		bob := a.register(t, "bob")
		alice, err := a.accounts.Resolve(ctx, account.ID)
		require.NoError(t, err)

		err = a.accounts.Delete(ctx, policy.Anonymous, account.ID)
		assertCode(t, err, models.CodeUnauthorized)
		err = a.accounts.Delete(ctx, bob, account.ID)
		assertCode(t, err, models.CodeForbidden)

		require.NoError(t, a.accounts.Delete(ctx, alice, account.ID))
		_, err = a.accounts.Me(ctx, alice)
		assertCode(t, err, models.CodeNotFound)
	})
}
