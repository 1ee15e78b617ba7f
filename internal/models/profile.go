package models

import "time"

// MaxBioLength bounds Profile.Bio.
const MaxBioLength = 300

// Profile is the public identity bound 1:1 to an Account.
type Profile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AccountID   uint      `gorm:"uniqueIndex;not null" json:"-"`
	Username    string    `gorm:"size:30;uniqueIndex;not null" json:"username"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	Bio         string    `gorm:"size:300" json:"bio"`
	PictureKey  string    `gorm:"size:255" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileFollow is a directed follow edge. The pair is the primary key so an
// edge can never be duplicated.
type ProfileFollow struct {
	FollowerID uint      `gorm:"primaryKey;autoIncrement:false" json:"follower_id"`
	FolloweeID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName overrides the default table name.
func (ProfileFollow) TableName() string { return "profile_follows" }

// FavoritePost is a private bookmark from a profile to a post.
type FavoritePost struct {
	ProfileID uint      `gorm:"primaryKey;autoIncrement:false"`
	PostID    uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

// TableName overrides the default table name.
func (FavoritePost) TableName() string { return "profile_favorite_posts" }

// ProfileStats holds relation cardinalities computed on read.
type ProfileStats struct {
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
	PostsCount     int64 `json:"posts_count"`
}
