package repository

import (
	"context"
	"testing"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository_CreateWithProfile(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	account := &models.Account{Username: "alice", Email: "alice@example.com", Password: "hash"}
	require.NoError(t, repo.Create(ctx, account))
	require.NotNil(t, account.Profile)
	assert.Equal(t, "alice", account.Profile.Username)
	assert.Equal(t, account.ID, account.Profile.AccountID)

	dup := &models.Account{Username: "alice", Email: "other@example.com", Password: "hash"}
	err := repo.Create(ctx, dup)
	assert.True(t, models.IsCode(err, models.CodeConflict))

	var profiles int64
	require.NoError(t, db.Model(&models.Profile{}).Count(&profiles).Error)
	assert.Equal(t, int64(1), profiles)

	loaded, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, loaded.Profile)
	assert.Equal(t, account.Profile.ID, loaded.Profile.ID)

	_, err = repo.GetByID(ctx, 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestAccountRepository_DeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	accounts := NewAccountRepository(db)
	posts := NewPostRepository(db, nil)
	comments := NewCommentRepository(db, nil)
	follows := NewFollowRepository(db)
	profiles := NewProfileRepository(db)
	ctx := context.Background()

	alice := createProfile(t, db, "alice")
	bob := createProfile(t, db, "bob")

	_, err := profiles.SetPicture(ctx, bob.ID, "profiles/2/me.png")
	require.NoError(t, err)
	bobPost := createPost(t, db, bob, "Bob writes", "solo", "shared")
	alicePost := createPost(t, db, alice, "Alice writes", "shared")

	_, err = follows.Toggle(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = follows.Toggle(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = posts.ToggleLike(ctx, bob.ID, alicePost.ID)
	require.NoError(t, err)
	_, err = posts.ToggleFavorite(ctx, bob.ID, alicePost.ID)
	require.NoError(t, err)

	bobComment := &models.Comment{ProfileID: bob.ID, PostID: alicePost.ID, Body: "from bob"}
	require.NoError(t, comments.Create(ctx, bobComment))
	aliceReply := &models.Comment{ProfileID: alice.ID, PostID: alicePost.ID, Body: "reply", ParentID: &bobComment.ID}
	require.NoError(t, comments.Create(ctx, aliceReply))
	aliceOnBob := &models.Comment{ProfileID: alice.ID, PostID: bobPost.ID, Body: "on bob's post"}
	require.NoError(t, comments.Create(ctx, aliceOnBob))

	bobAccount, err := accounts.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	keys, err := accounts.Delete(ctx, bobAccount.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"profiles/2/me.png"}, keys)

	assert.Equal(t, map[string]int64{"shared": 1}, tagCounts(t, db))

	var remaining []models.Comment
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, aliceReply.ID, remaining[0].ID)
	assert.Nil(t, remaining[0].ParentID)

	for _, model := range []interface{}{&models.ProfileFollow{}, &models.PostLike{}, &models.FavoritePost{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T", model)
	}

	_, err = profiles.GetByUsername(ctx, "bob")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	_, err = accounts.Delete(ctx, bobAccount.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
