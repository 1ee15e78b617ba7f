package repository

import (
	"context"
	"testing"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRepository_UpdateAndStats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProfileRepository(db)
	follows := NewFollowRepository(db)
	posts := NewPostRepository(db, nil)
	ctx := context.Background()
	alice := createProfile(t, db, "alice")
	bob := createProfile(t, db, "bob")

	updated, err := repo.Update(ctx, alice.ID, map[string]interface{}{"bio": "hello", "display_name": "Alice A."})
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.Bio)
	assert.Equal(t, "Alice A.", updated.DisplayName)

	_, err = follows.Toggle(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	post := createPost(t, db, alice, "Mine")
	_, err = posts.ToggleFavorite(ctx, alice.ID, post.ID)
	require.NoError(t, err)

	stats, err := repo.Stats(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProfileStats{FollowersCount: 1, FollowingCount: 0, PostsCount: 1}, stats)

	slugs, err := repo.FavoriteSlugs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{post.Slug}, slugs)

	followed, err := repo.FollowUsernames(ctx, []uint{alice.ID, bob.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{}, followed[alice.ID])
	assert.Equal(t, []string{"alice"}, followed[bob.ID])

	_, err = repo.Update(ctx, 999, nil)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestProfileRepository_Search(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProfileRepository(db)
	createProfile(t, db, "Gopher_One")
	createProfile(t, db, "gopher2")
	createProfile(t, db, "rustacean")

	found, err := repo.Search(context.Background(), "GOPHER", models.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"Gopher_One", "gopher2"}, usernames(found))

	// An underscore in the query is not a wildcard.
	found, err = repo.Search(context.Background(), "gophe_2", models.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestProfileRepository_SetPicture(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()
	alice := createProfile(t, db, "alice")

	old, err := repo.SetPicture(ctx, alice.ID, "profiles/1/a.png")
	require.NoError(t, err)
	assert.Empty(t, old)

	old, err = repo.SetPicture(ctx, alice.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "profiles/1/a.png", old)
}
