package service

import (
	"context"
	"strings"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileService_Retrieve(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	alice := a.register(t, "alice")
	bob := a.register(t, "bob")
	admin := a.admin(t, "boss")

	post := a.post(t, alice, "Mine")
	_, err := a.engagement.FavoritePost(ctx, alice, post.Slug)
	require.NoError(t, err)
	_, err = a.engagement.ToggleFollow(ctx, alice, "bob")
	require.NoError(t, err)

	t.Run("anonymous", func(t *testing.T) {
		_, err := a.profiles.Retrieve(ctx, policy.Anonymous, "alice")
		assertCode(t, err, models.CodeUnauthorized)
	})

	t.Run("owner view", func(t *testing.T) {
		view, err := a.profiles.Retrieve(ctx, alice, "alice")
		require.NoError(t, err)
		ov, ok := view.(*models.OwnerProfileView)
		require.True(t, ok, "got %T", view)
		assert.Equal(t, int64(1), ov.PostsCount)
		assert.Equal(t, int64(1), ov.FollowingCount)
		assert.Equal(t, []string{post.Slug}, ov.FavoritePosts)
		assert.Equal(t, []string{"bob"}, ov.Follows)
	})

	t.Run("public view for others and admins", func(t *testing.T) {
		for _, r := range []policy.Requester{bob, admin} {
			view, err := a.profiles.Retrieve(ctx, r, "alice")
			require.NoError(t, err)
			pv, ok := view.(*models.PublicProfileView)
			require.True(t, ok, "got %T", view)
			assert.Equal(t, "alice", pv.Username)
		}
	})

	t.Run("unknown profile", func(t *testing.T) {
		_, err := a.profiles.Retrieve(ctx, bob, "nobody")
		assertCode(t, err, models.CodeNotFound)
	})
}

func TestProfileService_List(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	alice := a.register(t, "alice")
	a.register(t, "bob")
	admin := a.admin(t, "boss")

	_, err := a.engagement.ToggleFollow(ctx, alice, "bob")
	require.NoError(t, err)

	_, err = a.profiles.List(ctx, alice, models.NewPageRequest(1, 10))
	assertCode(t, err, models.CodeForbidden)

	page, err := a.profiles.List(ctx, admin, models.NewPageRequest(1, 10))
	require.NoError(t, err)
	require.Len(t, page.Results, 3)
	follows := map[string][]string{}
	for _, p := range page.Results {
		follows[p.Username] = p.Follows
	}
	assert.Equal(t, []string{"bob"}, follows["alice"])
	assert.Equal(t, []string{}, follows["bob"])
}

func TestProfileService_Update(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	alice := a.register(t, "alice")
	bob := a.register(t, "bob")

	t.Run("other profiles are forbidden", func(t *testing.T) {
		_, err := a.profiles.Update(ctx, bob, "alice", UpdateProfileInput{Bio: strPtr("x")}, true)
		assertCode(t, err, models.CodeForbidden)
		assert.Contains(t, err.Error(), "You are not allowed to partially update this profile.")
	})

	t.Run("bio limit", func(t *testing.T) {
		_, err := a.profiles.Update(ctx, alice, "alice", UpdateProfileInput{Bio: strPtr(strings.Repeat("b", 301))}, true)
		assertValidationError(t, err)
	})

	t.Run("patch then put", func(t *testing.T) {
		view, err := a.profiles.Update(ctx, alice, "alice", UpdateProfileInput{
			DisplayName: strPtr("Alice A."),
			Bio:         strPtr("hello"),
		}, false)
		require.NoError(t, err)
		assert.Equal(t, "Alice A.", view.DisplayName)
		assert.Equal(t, "hello", view.Bio)

		view, err = a.profiles.Update(ctx, alice, "alice", UpdateProfileInput{Bio: strPtr("patched")}, true)
		require.NoError(t, err)
		assert.Equal(t, "Alice A.", view.DisplayName)
		assert.Equal(t, "patched", view.Bio)

		view, err = a.profiles.Update(ctx, alice, "alice", UpdateProfileInput{Bio: strPtr("only bio")}, false)
		require.NoError(t, err)
		assert.Equal(t, "", view.DisplayName)
	})
}

func TestProfileService_Picture(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	alice := a.register(t, "alice")

	_, err := a.profiles.UploadPicture(ctx, alice, "alice", Upload{Filename: "me.txt", Content: []byte("hello")})
	assertValidationError(t, err)

	first, err := a.profiles.UploadPicture(ctx, alice, "alice", Upload{Filename: "me.png", Content: pngBytes})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.PictureURL, "http://media.test/profiles/"))
	assert.Equal(t, 1, a.media.Len())

	second, err := a.profiles.UploadPicture(ctx, alice, "alice", Upload{Content: pngBytes})
	require.NoError(t, err)
	assert.NotEqual(t, first.PictureURL, second.PictureURL)
	assert.Equal(t, 1, a.media.Len())

	require.NoError(t, a.profiles.DeletePicture(ctx, alice, "alice"))
	assert.Equal(t, 0, a.media.Len())
}

func TestProfileService_Destroy(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	alice := a.register(t, "alice")
	bob := a.register(t, "bob")

	a.post(t, alice, "Going Away", "farewell")
	_, err := a.engagement.ToggleFollow(ctx, bob, "alice")
	require.NoError(t, err)

	err = a.profiles.Destroy(ctx, bob, "alice")
	assertCode(t, err, models.CodeForbidden)

	require.NoError(t, a.profiles.Destroy(ctx, alice, "alice"))

	_, err = a.profiles.Retrieve(ctx, bob, "alice")
	assertCode(t, err, models.CodeNotFound)
	_, err = a.tags.Retrieve(ctx, bob, "farewell")
	assertCode(t, err, models.CodeNotFound)

	following, err := a.follows.Following(ctx, bob, "bob", models.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Empty(t, following.Results)
}

func TestProfileService_Posts(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	alice := a.register(t, "alice")
	bob := a.register(t, "bob")

	older := a.post(t, alice, "Older")
	newer := a.post(t, alice, "Newer")
	hidden := a.post(t, alice, "Hidden")
	a.makePrivate(t, alice, hidden)

	page, err := a.profiles.Posts(ctx, bob, "alice", models.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{newer.Slug, older.Slug}, slugsOf(page))

	page, err = a.profiles.Posts(ctx, alice, "alice", models.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Len(t, page.Results, 3)
}
