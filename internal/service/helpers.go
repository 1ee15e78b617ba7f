// Package service holds the business rules of the API: authorization,
// visibility, validation and the side effects that follow a mutation.
package service

import (
	"context"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/policy"
	"inkwell/internal/repository"
	"inkwell/internal/storage"
)

// Publisher delivers notifications to a profile. *notifications.Notifier
// satisfies it.
type Publisher interface {
	PublishProfile(ctx context.Context, profileID uint, ev notifications.Event) error
}

const (
	maxCommentLength     = 10000
	maxDisplayNameLength = 100
)

func mediaURL(media storage.ObjectStore, key string) string {
	if media == nil || key == "" {
		return ""
	}
	return media.URL(key)
}

func publicView(media storage.ObjectStore, p *models.Profile) *models.PublicProfileView {
	if p == nil {
		return nil
	}
	return models.NewPublicProfileView(p, mediaURL(media, p.PictureKey))
}

func publicViews(media storage.ObjectStore, page models.PageRequest, rows []models.Profile) models.Page[models.PublicProfileView] {
	return models.MapPage(models.NewPage(page, rows), func(p models.Profile) models.PublicProfileView {
		return *publicView(media, &p)
	})
}

// visiblePost hides private posts from everyone but their owner and admins.
// A hidden post is reported exactly like a missing one.
func visiblePost(r policy.Requester, post *models.Post, ref interface{}) error {
	if !policy.CanViewPost(r, post) {
		return models.NewNotFoundError("Post", ref)
	}
	return nil
}

// visiblePostBySlug authorizes a and loads the post if r can see it.
func visiblePostBySlug(ctx context.Context, posts repository.PostRepository, r policy.Requester, a policy.Action, slug string) (*models.Post, error) {
	if err := policy.Authorize(r, a, 0); err != nil {
		return nil, err
	}
	post, err := posts.GetBySlug(ctx, slug, r.ProfileID)
	if err != nil {
		return nil, err
	}
	if err := visiblePost(r, post, slug); err != nil {
		return nil, err
	}
	return post, nil
}

// ownedPostBySlug loads the post and gates an owner-or-admin action on it.
// A post r cannot see is reported missing rather than forbidden.
func ownedPostBySlug(ctx context.Context, posts repository.PostRepository, r policy.Requester, a policy.Action, slug string) (*models.Post, error) {
	if !r.Authenticated() {
		return nil, models.NewUnauthorizedError("")
	}
	post, err := posts.GetBySlug(ctx, slug, r.ProfileID)
	if err != nil {
		return nil, err
	}
	if err := visiblePost(r, post, slug); err != nil {
		return nil, err
	}
	if err := policy.Authorize(r, a, post.ProfileID); err != nil {
		return nil, err
	}
	return post, nil
}

// removeObjects deletes media after the rows referencing it are gone. A
// failure leaves an orphaned object, never a dangling reference.
func removeObjects(ctx context.Context, media storage.ObjectStore, keys []string) {
	if media == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := media.Delete(ctx, key); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to delete media object", "key", key, "error", err)
		}
	}
}

func notify(ctx context.Context, pub Publisher, profileID uint, ev notifications.Event) {
	if pub == nil {
		return
	}
	if err := pub.PublishProfile(ctx, profileID, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish notification",
			"profile_id", profileID, "type", ev.Type, "error", err)
	}
}
