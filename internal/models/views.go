package models

import "time"

// PublicProfileView is what any authenticated requester sees of a profile.
type PublicProfileView struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	PictureURL  string `json:"picture_url,omitempty"`
}

// OwnerProfileView is returned only to the profile's owner.
type OwnerProfileView struct {
	PublicProfileView
	ProfileStats
	FavoritePosts []string  `json:"favorite_posts"`
	Follows       []string  `json:"follows"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProfileListView is the admin listing shape.
type ProfileListView struct {
	PublicProfileView
	Follows []string `json:"follows"`
}

// NewPublicProfileView projects p into its public shape.
func NewPublicProfileView(p *Profile, pictureURL string) *PublicProfileView {
	if p == nil {
		return nil
	}
	return &PublicProfileView{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		PictureURL:  pictureURL,
	}
}
