package database

import "inkwell/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Account{},
		&models.Profile{},
		&models.ProfileFollow{},
		&models.Post{},
		&models.PostImage{},
		&models.PostLike{},
		&models.FavoritePost{},
		&models.Tag{},
		&models.PostTag{},
		&models.Comment{},
		&models.CommentLike{},
	}
}
