package repository

import (
	"context"
	"errors"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uint) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	List(ctx context.Context, page models.PageRequest) ([]models.Account, error)
	SetAdmin(ctx context.Context, id uint, isAdmin bool) error
	Delete(ctx context.Context, id uint) ([]string, error)
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository returns a new AccountRepository implementation.
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// Create inserts the account and its profile in one transaction. The profile
// takes the account's username.
func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile := account.Profile
		account.Profile = nil
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		if profile == nil {
			profile = &models.Profile{}
		}
		profile.AccountID = account.ID
		profile.Username = account.Username
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		account.Profile = profile
		return nil
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("A user with that username or email already exists.")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Preload("Profile").First(&account, id).Error; err != nil {
		return nil, translate(err, "User", id)
	}
	return &account, nil
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Preload("Profile").Where("username = ?", username).First(&account).Error; err != nil {
		return nil, translate(err, "User", username)
	}
	return &account, nil
}

func (r *accountRepository) List(ctx context.Context, page models.PageRequest) ([]models.Account, error) {
	var accounts []models.Account
	if err := paginate(readDB(r.db).WithContext(ctx).Order("id ASC"), page).Find(&accounts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return accounts, nil
}

func (r *accountRepository) SetAdmin(ctx context.Context, id uint, isAdmin bool) error {
	res := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Update("is_admin", isAdmin)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

// Delete removes the account, its profile and everything the profile owns or
// touches: posts (with the tag lifecycle), comments, likes, favorites and
// follow edges in both directions. It returns the object keys that belonged
// to the profile so the caller can remove them from the media store.
func (r *accountRepository) Delete(ctx context.Context, id uint) ([]string, error) {
	var keys []string
	var touched []models.Tag
	var username string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		if err := tx.First(&account, id).Error; err != nil {
			return err
		}
		var profile models.Profile
		err := tx.Where("account_id = ?", id).First(&profile).Error
		switch {
		case err == nil:
			username = profile.Username
			if profile.PictureKey != "" {
				keys = append(keys, profile.PictureKey)
			}
			_, postKeys, tags, err := deleteProfilePostsTx(tx, profile.ID)
			if err != nil {
				return err
			}
			keys = append(keys, postKeys...)
			touched = tags
			if err := deleteProfileTracesTx(tx, profile.ID); err != nil {
				return err
			}
			if err := tx.Delete(&models.Profile{}, profile.ID).Error; err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Delete(&models.Account{}, id).Error
	})
	if err != nil {
		return nil, translate(err, "User", id)
	}
	if username != "" {
		cache.InvalidateProfile(ctx, username)
	}
	invalidateTags(ctx, touched)
	return keys, nil
}

// deleteProfileTracesTx removes the profile's comments (detaching replies by
// others), likes, favorites and follow edges.
func deleteProfileTracesTx(tx *gorm.DB, profileID uint) error {
	own := func() *gorm.DB {
		return tx.Model(&models.Comment{}).Select("id").Where("profile_id = ?", profileID)
	}

	if err := tx.Model(&models.Comment{}).
		Where("parent_id IN (?)", own()).
		Update("parent_id", nil).Error; err != nil {
		return err
	}
	if err := tx.Where("comment_id IN (?)", own()).Delete(&models.CommentLike{}).Error; err != nil {
		return err
	}

	steps := []func() error{
		func() error { return tx.Where("profile_id = ?", profileID).Delete(&models.Comment{}).Error },
		func() error { return tx.Where("profile_id = ?", profileID).Delete(&models.CommentLike{}).Error },
		func() error { return tx.Where("profile_id = ?", profileID).Delete(&models.PostLike{}).Error },
		func() error { return tx.Where("profile_id = ?", profileID).Delete(&models.FavoritePost{}).Error },
		func() error {
			return tx.Where("follower_id = ? OR followee_id = ?", profileID, profileID).
				Delete(&models.ProfileFollow{}).Error
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
