package repository

import (
	"context"
	"testing"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/policy"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTagRepository(db)
	ctx := context.Background()

	tag, err := repo.Create(ctx, "distributed systems")
	require.NoError(t, err)
	assert.Equal(t, "Distributed Systems", tag.Name)
	assert.Equal(t, "distributed-systems", tag.Slug)
	assert.Zero(t, tag.PostCount)

	_, err = repo.Create(ctx, "Distributed  Systems")
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Tag with this name already exists.", appErr.Message)

	_, err = repo.Create(ctx, "!!")
	assert.True(t, models.IsCode(err, models.CodeValidation))

	got, err := repo.GetBySlug(ctx, "distributed-systems")
	require.NoError(t, err)
	assert.Equal(t, tag.ID, got.ID)

	_, err = repo.GetBySlug(ctx, "missing")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestTagRepository_ListAndPosts(t *testing.T) {
	db := setupTestDB(t)
	tags := NewTagRepository(db)
	posts := NewPostRepository(db, nil)
	ctx := context.Background()
	alice := createProfile(t, db, "alice")

	first := createPost(t, db, alice, "First", "zeta", "alpha")
	second := createPost(t, db, alice, "Second", "alpha")
	hidden := createPost(t, db, alice, "Hidden", "alpha")
	_, err := posts.TogglePublish(ctx, hidden.ID)
	require.NoError(t, err)

	list, err := tags.List(ctx, models.NewPageRequest(1, 10))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].Name)
	assert.Equal(t, int64(3), list[0].PostCount)

	tagged, err := posts.ListByTag(ctx, list[0].ID, PostFilter{Scope: policy.PublicOnly}, models.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{second.Slug, first.Slug}, postSlugs(tagged))

	postTags, err := posts.Tags(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, postTags, 2)
	assert.Equal(t, "Alpha", postTags[0].Name)
}

func setupTestCache(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })
	return mr
}

func TestTagRepository_CachedCountFollowsPostWrites(t *testing.T) {
	mr := setupTestCache(t)
	db := setupTestDB(t)
	tags := NewTagRepository(db)
	posts := NewPostRepository(db, nil)
	ctx := context.Background()
	alice := createProfile(t, db, "alice")

	postCount := func() int64 {
		t.Helper()
		tag, err := tags.GetBySlug(ctx, "go")
		require.NoError(t, err)
		return tag.PostCount
	}

	one := createPost(t, db, alice, "One", "go")
	assert.Equal(t, int64(1), postCount())
	assert.True(t, mr.Exists(cache.TagKey("go")))

	two := createPost(t, db, alice, "Two", "go")
	assert.Equal(t, int64(2), postCount())

	require.NoError(t, posts.Update(ctx, two.ID, PostChanges{Tags: []string{"rust"}, ReplaceTags: true}))
	assert.Equal(t, int64(1), postCount())

	_, err := posts.Delete(ctx, one.ID)
	require.NoError(t, err)
	_, err = tags.GetBySlug(ctx, "go")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
