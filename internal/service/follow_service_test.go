package service

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowService_Graph(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	alice := a.register(t, "alice")
	bob := a.register(t, "bob")
	carol := a.register(t, "carol")
	page := models.NewPageRequest(1, 10)

	for _, target := range []string{"bob", "carol"} {
		_, err := a.engagement.ToggleFollow(ctx, alice, target)
		require.NoError(t, err)
	}
	_, err := a.engagement.ToggleFollow(ctx, carol, "bob")
	require.NoError(t, err)

	following, err := a.follows.Following(ctx, bob, "alice", page)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "bob"}, usernamesOf(following))

	followers, err := a.follows.Followers(ctx, alice, "bob", page)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "alice"}, usernamesOf(followers))

	yes, err := a.follows.IsFollowing(ctx, alice, "bob")
	require.NoError(t, err)
	assert.True(t, yes)

	self, err := a.follows.IsFollowing(ctx, alice, "alice")
	require.NoError(t, err)
	assert.False(t, self)

	_, err = a.engagement.ToggleFollow(ctx, alice, "alice")
	assertValidationError(t, err)

	_, err = a.follows.Following(ctx, policy.Anonymous, "alice", page)
	assertCode(t, err, models.CodeUnauthorized)
}

func TestFeedService_Feed(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	alice := a.register(t, "alice")
	bob := a.register(t, "bob")
	carol := a.register(t, "carol")
	page := models.NewPageRequest(1, 10)

	_, err := a.engagement.ToggleFollow(ctx, alice, "bob")
	require.NoError(t, err)

	first := a.post(t, bob, "Bob One")
	a.post(t, carol, "Carol One")
	second := a.post(t, bob, "Bob Two")
	hidden := a.post(t, bob, "Bob Private")
	a.makePrivate(t, bob, hidden)
	a.post(t, alice, "Alice Own")

	feed, err := a.feed.Feed(ctx, alice, page)
	require.NoError(t, err)
	assert.Equal(t, []string{second.Slug, first.Slug}, slugsOf(feed))

	_, err = a.feed.Feed(ctx, policy.Anonymous, page)
	assertCode(t, err, models.CodeUnauthorized)

	small, err := a.feed.Feed(ctx, alice, models.NewPageRequest(1, 1))
	require.NoError(t, err)
	require.NotNil(t, small.Next)
	assert.Equal(t, 2, *small.Next)
	assert.Nil(t, small.Previous)
}
