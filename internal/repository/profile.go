package repository

import (
	"context"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.Profile, error)
	GetByID(ctx context.Context, id uint) (*models.Profile, error)
	GetByAccountID(ctx context.Context, accountID uint) (*models.Profile, error)
	List(ctx context.Context, page models.PageRequest) ([]models.Profile, error)
	Search(ctx context.Context, query string, page models.PageRequest) ([]models.Profile, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) (*models.Profile, error)
	SetPicture(ctx context.Context, id uint, key string) (string, error)
	Stats(ctx context.Context, id uint) (models.ProfileStats, error)
	FavoriteSlugs(ctx context.Context, id uint) ([]string, error)
	FollowUsernames(ctx context.Context, ids []uint) (map[uint][]string, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository returns a new ProfileRepository implementation.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&profile).Error; err != nil {
		return nil, translate(err, "Profile", username)
	}
	return &profile, nil
}

func (r *profileRepository) GetByID(ctx context.Context, id uint) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		return nil, translate(err, "Profile", id)
	}
	return &profile, nil
}

func (r *profileRepository) GetByAccountID(ctx context.Context, accountID uint) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&profile).Error; err != nil {
		return nil, translate(err, "Profile", accountID)
	}
	return &profile, nil
}

func (r *profileRepository) List(ctx context.Context, page models.PageRequest) ([]models.Profile, error) {
	var profiles []models.Profile
	if err := paginate(readDB(r.db).WithContext(ctx).Order("id ASC"), page).Find(&profiles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}

// Search matches profiles whose username contains query, ignoring case.
func (r *profileRepository) Search(ctx context.Context, query string, page models.PageRequest) ([]models.Profile, error) {
	var profiles []models.Profile
	err := paginate(readDB(r.db).WithContext(ctx).
		Where("LOWER(username) LIKE ? ESCAPE '\\'", containsPattern(query)).
		Order("username ASC").Order("id ASC"), page).
		Find(&profiles).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}

func (r *profileRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&profile, id).Error; err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&profile).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&profile, id).Error
	})
	if err != nil {
		return nil, translate(err, "Profile", id)
	}
	cache.InvalidateProfile(ctx, profile.Username)
	return &profile, nil
}

// SetPicture stores key as the profile picture and returns the key it replaced.
func (r *profileRepository) SetPicture(ctx context.Context, id uint, key string) (string, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id", "username", "picture_key").First(&profile, id).Error; err != nil {
			return err
		}
		return tx.Model(&models.Profile{}).Where("id = ?", id).Update("picture_key", key).Error
	})
	if err != nil {
		return "", translate(err, "Profile", id)
	}
	cache.InvalidateProfile(ctx, profile.Username)
	return profile.PictureKey, nil
}

func (r *profileRepository) Stats(ctx context.Context, id uint) (models.ProfileStats, error) {
	var stats models.ProfileStats
	err := readDB(r.db).WithContext(ctx).Raw(
		"SELECT "+
			"(SELECT COUNT(*) FROM profile_follows WHERE followee_id = ?) AS followers_count, "+
			"(SELECT COUNT(*) FROM profile_follows WHERE follower_id = ?) AS following_count, "+
			"(SELECT COUNT(*) FROM posts WHERE profile_id = ?) AS posts_count",
		id, id, id,
	).Scan(&stats).Error
	if err != nil {
		return stats, models.NewInternalError(err)
	}
	return stats, nil
}

// FavoriteSlugs returns the slugs of the profile's favorite posts, newest first.
func (r *profileRepository) FavoriteSlugs(ctx context.Context, id uint) ([]string, error) {
	slugs := []string{}
	err := readDB(r.db).WithContext(ctx).Model(&models.Post{}).
		Joins("JOIN profile_favorite_posts fav ON fav.post_id = posts.id").
		Where("fav.profile_id = ?", id).
		Order("fav.created_at DESC").
		Pluck("posts.slug", &slugs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return slugs, nil
}

// FollowUsernames returns, for each profile id, the usernames it follows.
func (r *profileRepository) FollowUsernames(ctx context.Context, ids []uint) (map[uint][]string, error) {
	out := make(map[uint][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for _, id := range ids {
		out[id] = []string{}
	}

	var rows []struct {
		FollowerID uint
		Username   string
	}
	err := readDB(r.db).WithContext(ctx).Table("profile_follows").
		Select("profile_follows.follower_id AS follower_id, profiles.username AS username").
		Joins("JOIN profiles ON profiles.id = profile_follows.followee_id").
		Where("profile_follows.follower_id IN ?", ids).
		Order("profiles.username ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range rows {
		out[row.FollowerID] = append(out[row.FollowerID], row.Username)
	}
	return out, nil
}
