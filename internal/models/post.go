package models

import "time"

// Limits enforced on posts.
const (
	MaxPostTitleLength = 100
	MaxPostSlugLength  = 200
	MaxPostImages      = 10
	MaxFeaturedPosts   = 3
)

// Post is owned by a Profile. LikeCount, CommentCount, IsLiked and IsFavorited
// are computed at query time and never stored.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProfileID  uint      `gorm:"not null;index" json:"profile_id"`
	Title      string    `gorm:"size:100;not null" json:"title"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	Slug       string    `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	IsFeatured bool      `gorm:"not null;default:false;index" json:"is_featured"`
	IsPrivate  bool      `gorm:"not null;default:false;index" json:"is_private"`
	ViewCount  int64     `gorm:"not null;default:0" json:"view_count"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	LikeCount    int64 `gorm:"->;-:migration" json:"like_count"`
	CommentCount int64 `gorm:"->;-:migration" json:"comment_count"`
	IsLiked      bool  `gorm:"->;-:migration" json:"is_liked"`
	IsFavorited  bool  `gorm:"->;-:migration" json:"is_favorited"`

	Author *PublicProfileView `gorm:"-" json:"author,omitempty"`
	Tags   []Tag              `gorm:"-" json:"tags"`
	Images []PostImage        `gorm:"-" json:"images"`
}

// PostImage is an ordered reference to an object in the media store.
type PostImage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PostID      uint      `gorm:"not null;index" json:"post_id"`
	Position    int       `gorm:"not null" json:"position"`
	ObjectKey   string    `gorm:"size:255;not null" json:"-"`
	ContentType string    `gorm:"size:100" json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
	URL         string    `gorm:"-" json:"url"`
}

// PostLike records that a profile liked a post.
type PostLike struct {
	ProfileID uint      `gorm:"primaryKey;autoIncrement:false"`
	PostID    uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

// PostTag attaches a tag to a post.
type PostTag struct {
	PostID uint `gorm:"primaryKey;autoIncrement:false"`
	TagID  uint `gorm:"primaryKey;autoIncrement:false;index"`
}
