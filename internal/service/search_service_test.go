package service

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchService_Validation(t *testing.T) {
	t.Parallel()

	svc := NewSearchService(nil, nil, nil)

	_, err := svc.Search(context.Background(), policy.Anonymous, "go", "", models.NewPageRequest(1, 10))
	assertCode(t, err, models.CodeUnauthorized)

	_, err = svc.Search(context.Background(), owner, "   ", SearchPosts, models.NewPageRequest(1, 10))
	assertValidationError(t, err)
	assert.Contains(t, err.Error(), "Search query is required")
}

func TestSearchService_Scenario(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	alice := a.register(t, "alice")
	bob := a.register(t, "gopher")
	page := models.NewPageRequest(1, 10)

	tagged := a.post(t, alice, "Weekend Notes", "golang", "go-tips")
	titled := a.post(t, alice, "Golang in Production")
	hidden := a.post(t, alice, "Golang Secrets")
	a.makePrivate(t, alice, hidden)

	t.Run("posts match title and tags once each", func(t *testing.T) {
		res, err := a.search.Search(ctx, bob, "GOLANG", SearchPosts, page)
		require.NoError(t, err)
		require.NotNil(t, res.Posts)
		assert.Nil(t, res.Profiles)
		assert.Equal(t, []string{titled.Slug, tagged.Slug}, slugsOf(*res.Posts))
	})

	t.Run("tag search is exact", func(t *testing.T) {
		res, err := a.search.Search(ctx, bob, "golang", SearchTags, page)
		require.NoError(t, err)
		assert.Equal(t, []string{tagged.Slug}, slugsOf(*res.Posts))

		res, err = a.search.Search(ctx, bob, "gol", SearchTags, page)
		require.NoError(t, err)
		assert.Empty(t, res.Posts.Results)
	})

	t.Run("profiles", func(t *testing.T) {
		res, err := a.search.Search(ctx, alice, "OPHE", SearchProfiles, page)
		require.NoError(t, err)
		require.NotNil(t, res.Profiles)
		assert.Nil(t, res.Posts)
		assert.Equal(t, []string{"gopher"}, usernamesOf(*res.Profiles))
	})

	t.Run("no type searches both", func(t *testing.T) {
		res, err := a.search.Search(ctx, bob, "go", "", page)
		require.NoError(t, err)
		require.NotNil(t, res.Posts)
		require.NotNil(t, res.Profiles)
		assert.Len(t, res.Posts.Results, 2)
		assert.Equal(t, []string{"gopher"}, usernamesOf(*res.Profiles))
	})
}
