package service

import (
	"context"
	"fmt"

	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/policy"
	"inkwell/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// EngagementService runs the like, favorite, feature, publish and follow
// toggles. Every toggle reports the transition it committed.
type EngagementService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	follows  repository.FollowRepository
	profiles repository.ProfileRepository
	notifier Publisher
}

func NewEngagementService(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	follows repository.FollowRepository,
	profiles repository.ProfileRepository,
	notifier Publisher,
) *EngagementService {
	return &EngagementService{
		posts:    posts,
		comments: comments,
		follows:  follows,
		profiles: profiles,
		notifier: notifier,
	}
}

// Toggle kinds, used as the metric label.
const (
	kindPostLike    = "post_like"
	kindCommentLike = "comment_like"
	kindFavorite    = "favorite"
	kindFeature     = "feature"
	kindPublish     = "publish"
	kindFollow      = "follow"
)

func (s *EngagementService) LikePost(ctx context.Context, r policy.Requester, slug string) (result models.ToggleResult, err error) {
	span, ctx := observability.NewSpan(ctx, "engagement.like_post", attribute.String("post.slug", slug))
	defer func() { span.Finish(err) }()

	post, err := visiblePostBySlug(ctx, s.posts, r, policy.PostLike, slug)
	if err != nil {
		return models.ToggleResult{}, err
	}
	outcome, err := s.posts.ToggleLike(ctx, r.ProfileID, post.ID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	record(span, kindPostLike, outcome)

	if outcome == models.ToggleAdded && post.ProfileID != r.ProfileID {
		notify(ctx, s.notifier, post.ProfileID, notifications.Event{
			Type:     notifications.EventPostLiked,
			Actor:    r.Username,
			PostSlug: post.Slug,
		})
	}
	count, err := s.posts.LikeCount(ctx, post.ID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	return withCount(toggleResult(outcome, "Post liked successfully", "Post unliked successfully"), count), nil
}

func (s *EngagementService) FavoritePost(ctx context.Context, r policy.Requester, slug string) (result models.ToggleResult, err error) {
	span, ctx := observability.NewSpan(ctx, "engagement.favorite_post", attribute.String("post.slug", slug))
	defer func() { span.Finish(err) }()

	post, err := visiblePostBySlug(ctx, s.posts, r, policy.PostFavorite, slug)
	if err != nil {
		return models.ToggleResult{}, err
	}
	outcome, err := s.posts.ToggleFavorite(ctx, r.ProfileID, post.ID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	record(span, kindFavorite, outcome)
	return toggleResult(outcome, "Post added to favorites successfully", "Post removed from favorites successfully"), nil
}

// FeaturePost flips is_featured. Featuring beyond the per-profile limit is
// reported as limit_exceeded and changes nothing.
func (s *EngagementService) FeaturePost(ctx context.Context, r policy.Requester, slug string) (result models.ToggleResult, err error) {
	span, ctx := observability.NewSpan(ctx, "engagement.feature_post", attribute.String("post.slug", slug))
	defer func() { span.Finish(err) }()

	post, err := ownedPostBySlug(ctx, s.posts, r, policy.PostFeature, slug)
	if err != nil {
		return models.ToggleResult{}, err
	}
	outcome, err := s.posts.ToggleFeature(ctx, post.ID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	record(span, kindFeature, outcome)

	switch outcome {
	case models.ToggleRemoved:
		return models.ToggleResult{Outcome: outcome, Message: "Post unfeatured successfully."}, nil
	case models.ToggleLimitExceeded:
		return models.ToggleResult{Outcome: outcome, Message: "Maximum limit of featured posts reached"}, nil
	default:
		return models.ToggleResult{Outcome: outcome, Message: "Post featured successfully"}, nil
	}
}

// PublishPost flips is_private. Added means the post became public.
func (s *EngagementService) PublishPost(ctx context.Context, r policy.Requester, slug string) (result models.ToggleResult, err error) {
	span, ctx := observability.NewSpan(ctx, "engagement.publish_post", attribute.String("post.slug", slug))
	defer func() { span.Finish(err) }()

	post, err := ownedPostBySlug(ctx, s.posts, r, policy.PostPublish, slug)
	if err != nil {
		return models.ToggleResult{}, err
	}
	private, err := s.posts.TogglePublish(ctx, post.ID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	outcome := models.ToggleAdded
	if private {
		outcome = models.ToggleRemoved
	}
	record(span, kindPublish, outcome)
	return toggleResult(outcome, "Post published successfully", "Post unpublished successfully"), nil
}

func (s *EngagementService) LikeComment(ctx context.Context, r policy.Requester, id uint) (result models.ToggleResult, err error) {
	span, ctx := observability.NewSpan(ctx, "engagement.like_comment", attribute.Int64("comment.id", int64(id)))
	defer func() { span.Finish(err) }()

	if err := policy.Authorize(r, policy.CommentLike, 0); err != nil {
		return models.ToggleResult{}, err
	}
	comment, err := s.comments.GetByID(ctx, id, r.ProfileID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	post, err := s.posts.GetByID(ctx, comment.PostID, r.ProfileID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	if !policy.CanViewPost(r, post) {
		return models.ToggleResult{}, models.NewNotFoundError("Comment", id)
	}

	outcome, err := s.comments.ToggleLike(ctx, r.ProfileID, comment.ID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	record(span, kindCommentLike, outcome)

	if outcome == models.ToggleAdded && comment.ProfileID != r.ProfileID {
		notify(ctx, s.notifier, comment.ProfileID, notifications.Event{
			Type:      notifications.EventCommentLiked,
			Actor:     r.Username,
			PostSlug:  post.Slug,
			CommentID: comment.ID,
		})
	}
	count, err := s.comments.LikeCount(ctx, comment.ID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	return withCount(toggleResult(outcome, "Comment liked successfully", "Comment unliked successfully"), count), nil
}

// ToggleFollow follows or unfollows username on behalf of r.
func (s *EngagementService) ToggleFollow(ctx context.Context, r policy.Requester, username string) (result models.ToggleResult, err error) {
	span, ctx := observability.NewSpan(ctx, "engagement.toggle_follow", attribute.String("profile.username", username))
	defer func() { span.Finish(err) }()

	if err := policy.Authorize(r, policy.ProfileFollow, 0); err != nil {
		return models.ToggleResult{}, err
	}
	target, err := s.profiles.GetByUsername(ctx, username)
	if err != nil {
		return models.ToggleResult{}, err
	}
	if target.ID == r.ProfileID {
		return models.ToggleResult{}, models.NewValidationError("You cannot follow yourself")
	}

	outcome, err := s.follows.Toggle(ctx, r.ProfileID, target.ID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	record(span, kindFollow, outcome)

	if outcome == models.ToggleAdded {
		notify(ctx, s.notifier, target.ID, notifications.Event{
			Type:  notifications.EventNewFollower,
			Actor: r.Username,
		})
	}
	return toggleResult(outcome,
		fmt.Sprintf("You are now following %s", target.Username),
		fmt.Sprintf("You have successfully unfollowed %s", target.Username),
	), nil
}

func record(span *observability.Span, kind string, outcome models.ToggleOutcome) {
	span.AddAttributes(observability.AttrToggleOutcome.String(string(outcome)))
	observability.EngagementToggles.WithLabelValues(kind, string(outcome)).Inc()
}

func toggleResult(outcome models.ToggleOutcome, added, removed string) models.ToggleResult {
	msg := added
	if outcome == models.ToggleRemoved {
		msg = removed
	}
	return models.ToggleResult{Outcome: outcome, Message: msg}
}

// withCount attaches the like count read after the toggle committed.
func withCount(res models.ToggleResult, count int64) models.ToggleResult {
	res.Count = &count
	return res
}
