package service

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/policy"
	"inkwell/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub overrides the PostRepository methods the engagement paths use.
// Calling anything else panics on the nil embedded interface.
type postRepoStub struct {
	repository.PostRepository
	getBySlugFn     func(context.Context, string, uint) (*models.Post, error)
	toggleLikeFn    func(context.Context, uint, uint) (models.ToggleOutcome, error)
	likeCountFn     func(context.Context, uint) (int64, error)
	toggleFeatureFn func(context.Context, uint) (models.ToggleOutcome, error)
}

func (s *postRepoStub) GetBySlug(ctx context.Context, slug string, viewer uint) (*models.Post, error) {
	return s.getBySlugFn(ctx, slug, viewer)
}

func (s *postRepoStub) ToggleLike(ctx context.Context, profileID, postID uint) (models.ToggleOutcome, error) {
	return s.toggleLikeFn(ctx, profileID, postID)
}

func (s *postRepoStub) LikeCount(ctx context.Context, postID uint) (int64, error) {
	if s.likeCountFn == nil {
		return 0, nil
	}
	return s.likeCountFn(ctx, postID)
}

func (s *postRepoStub) ToggleFeature(ctx context.Context, postID uint) (models.ToggleOutcome, error) {
	return s.toggleFeatureFn(ctx, postID)
}

func stubPost(post models.Post) *postRepoStub {
	return &postRepoStub{
		getBySlugFn: func(_ context.Context, _ string, _ uint) (*models.Post, error) {
			p := post
			return &p, nil
		},
	}
}

type profileRepoStub struct {
	repository.ProfileRepository
	getByUsernameFn func(context.Context, string) (*models.Profile, error)
}

func (s *profileRepoStub) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	return s.getByUsernameFn(ctx, username)
}

var (
	owner    = policy.Requester{AccountID: 1, ProfileID: 10, Username: "owner"}
	stranger = policy.Requester{AccountID: 2, ProfileID: 20, Username: "stranger"}
	root     = policy.Requester{AccountID: 3, ProfileID: 30, Username: "root", IsAdmin: true}
)

func TestEngagementService_LikePost_Messages(t *testing.T) {
	t.Parallel()

	outcomes := []models.ToggleOutcome{models.ToggleAdded, models.ToggleRemoved}
	posts := stubPost(models.Post{ID: 5, ProfileID: owner.ProfileID, Slug: "hello"})
	calls := 0
	posts.toggleLikeFn = func(_ context.Context, profileID, postID uint) (models.ToggleOutcome, error) {
		assert.Equal(t, stranger.ProfileID, profileID)
		assert.Equal(t, uint(5), postID)
		o := outcomes[calls]
		calls++
		return o, nil
	}
	posts.likeCountFn = func(_ context.Context, postID uint) (int64, error) {
		assert.Equal(t, uint(5), postID)
		return int64(2 - calls), nil
	}
	pub := newRecordingPublisher()
	svc := NewEngagementService(posts, nil, nil, nil, pub)

	res, err := svc.LikePost(context.Background(), stranger, "hello")
	require.NoError(t, err)
	assert.Equal(t, models.ToggleAdded, res.Outcome)
	assert.Equal(t, "Post liked successfully", res.Message)
	require.NotNil(t, res.Count)
	assert.Equal(t, int64(1), *res.Count)

	res, err = svc.LikePost(context.Background(), stranger, "hello")
	require.NoError(t, err)
	assert.Equal(t, models.ToggleRemoved, res.Outcome)
	assert.Equal(t, "Post unliked successfully", res.Message)
	require.NotNil(t, res.Count)
	assert.Equal(t, int64(0), *res.Count)

	events := pub.For(owner.ProfileID)
	require.Len(t, events, 1)
	assert.Equal(t, notifications.EventPostLiked, events[0].Type)
	assert.Equal(t, "stranger", events[0].Actor)
	assert.Equal(t, "hello", events[0].PostSlug)
}

func TestEngagementService_LikePost_Visibility(t *testing.T) {
	t.Parallel()

	posts := stubPost(models.Post{ID: 5, ProfileID: owner.ProfileID, Slug: "secret", IsPrivate: true})
	posts.toggleLikeFn = func(context.Context, uint, uint) (models.ToggleOutcome, error) {
		return models.ToggleAdded, nil
	}
	svc := NewEngagementService(posts, nil, nil, nil, nil)

	t.Run("anonymous", func(t *testing.T) {
		t.Parallel()
		_, err := svc.LikePost(context.Background(), policy.Anonymous, "secret")
		assertCode(t, err, models.CodeUnauthorized)
	})

	t.Run("private post is missing for others", func(t *testing.T) {
		t.Parallel()
		_, err := svc.LikePost(context.Background(), stranger, "secret")
		assertCode(t, err, models.CodeNotFound)
	})

	t.Run("owner and admin see it", func(t *testing.T) {
		t.Parallel()
		_, err := svc.LikePost(context.Background(), owner, "secret")
		require.NoError(t, err)
		_, err = svc.LikePost(context.Background(), root, "secret")
		require.NoError(t, err)
	})
}

func TestEngagementService_FeaturePost(t *testing.T) {
	t.Parallel()

	cases := []struct {
		outcome models.ToggleOutcome
		message string
	}{
		{models.ToggleAdded, "Post featured successfully"},
		{models.ToggleRemoved, "Post unfeatured successfully."},
		{models.ToggleLimitExceeded, "Maximum limit of featured posts reached"},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			t.Parallel()
			posts := stubPost(models.Post{ID: 5, ProfileID: owner.ProfileID, Slug: "hello"})
			posts.toggleFeatureFn = func(context.Context, uint) (models.ToggleOutcome, error) {
				return tc.outcome, nil
			}
			svc := NewEngagementService(posts, nil, nil, nil, nil)

			res, err := svc.FeaturePost(context.Background(), owner, "hello")
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, res.Outcome)
			assert.Equal(t, tc.message, res.Message)
		})
	}

	t.Run("non-owner is forbidden", func(t *testing.T) {
		t.Parallel()
		svc := NewEngagementService(stubPost(models.Post{ID: 5, ProfileID: owner.ProfileID}), nil, nil, nil, nil)
		_, err := svc.FeaturePost(context.Background(), stranger, "hello")
		assertCode(t, err, models.CodeForbidden)
	})
}

func TestEngagementService_ToggleFollow_Self(t *testing.T) {
	t.Parallel()

	profiles := &profileRepoStub{
		getByUsernameFn: func(_ context.Context, username string) (*models.Profile, error) {
			return &models.Profile{ID: owner.ProfileID, Username: username}, nil
		},
	}
	svc := NewEngagementService(nil, nil, nil, profiles, nil)

	_, err := svc.ToggleFollow(context.Background(), owner, "owner")
	assertValidationError(t, err)
	assert.Contains(t, err.Error(), "You cannot follow yourself")
}

func TestEngagementService_Scenario(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	alice := a.register(t, "alice")
	bob := a.register(t, "bob")

	post := a.post(t, alice, "Hello World")

	t.Run("like toggles and counts at read time", func(t *testing.T) {
		res, err := a.engagement.LikePost(ctx, bob, post.Slug)
		require.NoError(t, err)
		assert.Equal(t, models.ToggleAdded, res.Outcome)
		require.NotNil(t, res.Count)
		assert.Equal(t, int64(1), *res.Count)

		got, err := a.posts.Retrieve(ctx, bob, post.Slug)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.LikeCount)
		assert.True(t, got.IsLiked)

		res, err = a.engagement.LikePost(ctx, bob, post.Slug)
		require.NoError(t, err)
		assert.Equal(t, models.ToggleRemoved, res.Outcome)

		got, err = a.posts.Retrieve(ctx, bob, post.Slug)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.LikeCount)
	})

	t.Run("follow then unfollow", func(t *testing.T) {
		res, err := a.engagement.ToggleFollow(ctx, alice, "bob")
		require.NoError(t, err)
		assert.Equal(t, models.ToggleAdded, res.Outcome)
		assert.Equal(t, "You are now following bob", res.Message)

		following, err := a.follows.IsFollowing(ctx, alice, "bob")
		require.NoError(t, err)
		assert.True(t, following)
		reverse, err := a.follows.IsFollowing(ctx, bob, "alice")
		require.NoError(t, err)
		assert.False(t, reverse)

		res, err = a.engagement.ToggleFollow(ctx, alice, "bob")
		require.NoError(t, err)
		assert.Equal(t, "You have successfully unfollowed bob", res.Message)

		require.NotEmpty(t, a.notifier.For(bob.ProfileID))
	})

	t.Run("feature limit", func(t *testing.T) {
		slugs := []string{post.Slug}
		for _, title := range []string{"Second", "Third", "Fourth"} {
			slugs = append(slugs, a.post(t, alice, title).Slug)
		}
		for _, s := range slugs[:3] {
			res, err := a.engagement.FeaturePost(ctx, alice, s)
			require.NoError(t, err)
			require.Equal(t, models.ToggleAdded, res.Outcome)
		}

		res, err := a.engagement.FeaturePost(ctx, alice, slugs[3])
		require.NoError(t, err)
		assert.Equal(t, models.ToggleLimitExceeded, res.Outcome)

		fourth, err := a.posts.Retrieve(ctx, alice, slugs[3])
		require.NoError(t, err)
		assert.False(t, fourth.IsFeatured)

		res, err = a.engagement.FeaturePost(ctx, alice, slugs[0])
		require.NoError(t, err)
		assert.Equal(t, models.ToggleRemoved, res.Outcome)

		res, err = a.engagement.FeaturePost(ctx, alice, slugs[3])
		require.NoError(t, err)
		assert.Equal(t, models.ToggleAdded, res.Outcome)
	})

	t.Run("publish flips visibility", func(t *testing.T) {
		res, err := a.engagement.PublishPost(ctx, alice, post.Slug)
		require.NoError(t, err)
		assert.Equal(t, "Post unpublished successfully", res.Message)

		_, err = a.posts.Retrieve(ctx, bob, post.Slug)
		assertCode(t, err, models.CodeNotFound)

		res, err = a.engagement.PublishPost(ctx, alice, post.Slug)
		require.NoError(t, err)
		assert.Equal(t, "Post published successfully", res.Message)

		_, err = a.posts.Retrieve(ctx, bob, post.Slug)
		require.NoError(t, err)
	})

	t.Run("comment like notifies the author", func(t *testing.T) {
		comment, err := a.comments.Create(ctx, alice, CreateCommentInput{PostID: post.ID, Body: "first"})
		require.NoError(t, err)

		res, err := a.engagement.LikeComment(ctx, bob, comment.ID)
		require.NoError(t, err)
		assert.Equal(t, "Comment liked successfully", res.Message)
		require.NotNil(t, res.Count)
		assert.Equal(t, int64(1), *res.Count)

		events := a.notifier.For(alice.ProfileID)
		require.NotEmpty(t, events)
		assert.Equal(t, notifications.EventCommentLiked, events[len(events)-1].Type)
		assert.Equal(t, comment.ID, events[len(events)-1].CommentID)
	})
}
