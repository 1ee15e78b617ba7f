package models

import "time"

// Tag is a shared label. PostCount always equals the number of posts carrying
// the tag; a tag whose count drops to zero is deleted.
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Slug      string    `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	PostCount int64     `gorm:"not null;default:0" json:"post_count"`
	CreatedAt time.Time `json:"created_at"`
}
