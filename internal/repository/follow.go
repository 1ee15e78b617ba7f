package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// FollowRepository reads and flips directed follow edges.
type FollowRepository interface {
	Toggle(ctx context.Context, followerID, followeeID uint) (models.ToggleOutcome, error)
	IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error)
	Following(ctx context.Context, profileID uint, page models.PageRequest) ([]models.Profile, error)
	Followers(ctx context.Context, profileID uint, page models.PageRequest) ([]models.Profile, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository returns a new FollowRepository implementation.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

// Toggle flips follower -> followee. Callers reject self-edges.
func (r *followRepository) Toggle(ctx context.Context, followerID, followeeID uint) (models.ToggleOutcome, error) {
	return toggleRelation(ctx, r.db, &models.ProfileFollow{FollowerID: followerID, FolloweeID: followeeID},
		map[string]interface{}{"follower_id": followerID, "followee_id": followeeID})
}

func (r *followRepository) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	if followerID == followeeID {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProfileFollow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Following lists the profiles profileID follows, most recent edge first.
func (r *followRepository) Following(ctx context.Context, profileID uint, page models.PageRequest) ([]models.Profile, error) {
	return r.hop(ctx, "profile_follows.followee_id", "profile_follows.follower_id", profileID, page)
}

// Followers lists the profiles following profileID, most recent edge first.
func (r *followRepository) Followers(ctx context.Context, profileID uint, page models.PageRequest) ([]models.Profile, error) {
	return r.hop(ctx, "profile_follows.follower_id", "profile_follows.followee_id", profileID, page)
}

func (r *followRepository) hop(ctx context.Context, joinCol, anchorCol string, profileID uint, page models.PageRequest) ([]models.Profile, error) {
	var profiles []models.Profile
	err := paginate(readDB(r.db).WithContext(ctx).
		Joins("JOIN profile_follows ON "+joinCol+" = profiles.id").
		Where(anchorCol+" = ?", profileID).
		Order("profile_follows.created_at DESC").Order("profiles.id DESC"), page).
		Find(&profiles).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}
