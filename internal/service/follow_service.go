package service

import (
	"context"

	"inkwell/internal/models"
	"inkwell/internal/policy"
	"inkwell/internal/repository"
	"inkwell/internal/storage"
)

// FollowService reads the follow graph. Toggling an edge lives in
// EngagementService.
type FollowService struct {
	follows  repository.FollowRepository
	profiles repository.ProfileRepository
	media    storage.ObjectStore
}

func NewFollowService(follows repository.FollowRepository, profiles repository.ProfileRepository, media storage.ObjectStore) *FollowService {
	return &FollowService{follows: follows, profiles: profiles, media: media}
}

// Following lists the profiles username follows, most recent edge first.
func (s *FollowService) Following(ctx context.Context, r policy.Requester, username string, page models.PageRequest) (models.Page[models.PublicProfileView], error) {
	if err := policy.Authorize(r, policy.ProfileFollowing, 0); err != nil {
		return models.Page[models.PublicProfileView]{}, err
	}
	profile, err := s.profiles.GetByUsername(ctx, username)
	if err != nil {
		return models.Page[models.PublicProfileView]{}, err
	}
	rows, err := s.follows.Following(ctx, profile.ID, page)
	if err != nil {
		return models.Page[models.PublicProfileView]{}, err
	}
	return publicViews(s.media, page, rows), nil
}

// Followers lists the profiles following username, most recent edge first.
func (s *FollowService) Followers(ctx context.Context, r policy.Requester, username string, page models.PageRequest) (models.Page[models.PublicProfileView], error) {
	if err := policy.Authorize(r, policy.ProfileFollowers, 0); err != nil {
		return models.Page[models.PublicProfileView]{}, err
	}
	profile, err := s.profiles.GetByUsername(ctx, username)
	if err != nil {
		return models.Page[models.PublicProfileView]{}, err
	}
	rows, err := s.follows.Followers(ctx, profile.ID, page)
	if err != nil {
		return models.Page[models.PublicProfileView]{}, err
	}
	return publicViews(s.media, page, rows), nil
}

// IsFollowing reports whether r follows username. A profile never follows
// itself.
func (s *FollowService) IsFollowing(ctx context.Context, r policy.Requester, username string) (bool, error) {
	if err := policy.Authorize(r, policy.ProfileIsFollowing, 0); err != nil {
		return false, err
	}
	profile, err := s.profiles.GetByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	return s.follows.IsFollowing(ctx, r.ProfileID, profile.ID)
}
