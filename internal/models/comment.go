package models

import "time"

// Comment belongs to a post and optionally replies to another comment on the
// same post.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProfileID uint      `gorm:"not null;index" json:"profile_id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LikeCount    int64 `gorm:"->;-:migration" json:"like_count"`
	RepliesCount int64 `gorm:"->;-:migration" json:"replies_count"`
	IsLiked      bool  `gorm:"->;-:migration" json:"is_liked"`

	Author *PublicProfileView `gorm:"-" json:"author,omitempty"`
}

// CommentLike records that a profile liked a comment.
type CommentLike struct {
	ProfileID uint      `gorm:"primaryKey;autoIncrement:false"`
	CommentID uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}
