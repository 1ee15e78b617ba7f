package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/policy"
	"inkwell/internal/repository"
	"inkwell/internal/storage"
	"inkwell/internal/validation"

	"github.com/google/uuid"
)

type ProfileService struct {
	profiles repository.ProfileRepository
	accounts repository.AccountRepository
	posts    repository.PostRepository
	media    storage.ObjectStore
}

type UpdateProfileInput struct {
	DisplayName *string
	Bio         *string
}

// Upload is one file received from a multipart form.
type Upload struct {
	Filename string
	Content  []byte
}

func NewProfileService(
	profiles repository.ProfileRepository,
	accounts repository.AccountRepository,
	posts repository.PostRepository,
	media storage.ObjectStore,
) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		accounts: accounts,
		posts:    posts,
		media:    media,
	}
}

// List is the admin listing of profiles with the usernames each one follows.
func (s *ProfileService) List(ctx context.Context, r policy.Requester, page models.PageRequest) (models.Page[models.ProfileListView], error) {
	if err := policy.Authorize(r, policy.ProfileList, 0); err != nil {
		return models.Page[models.ProfileListView]{}, err
	}
	rows, err := s.profiles.List(ctx, page)
	if err != nil {
		return models.Page[models.ProfileListView]{}, err
	}
	window := models.NewPage(page, rows)

	ids := make([]uint, 0, len(window.Results))
	for _, p := range window.Results {
		ids = append(ids, p.ID)
	}
	follows, err := s.profiles.FollowUsernames(ctx, ids)
	if err != nil {
		return models.Page[models.ProfileListView]{}, err
	}
	return models.MapPage(window, func(p models.Profile) models.ProfileListView {
		f := follows[p.ID]
		if f == nil {
			f = []string{}
		}
		return models.ProfileListView{PublicProfileView: *publicView(s.media, &p), Follows: f}
	}), nil
}

// Retrieve returns the owner view to the profile's owner and the public view
// to everyone else. Public views are served from the cache.
func (s *ProfileService) Retrieve(ctx context.Context, r policy.Requester, username string) (interface{}, error) {
	if err := policy.Authorize(r, policy.ProfileRetrieve, 0); err != nil {
		return nil, err
	}
	if strings.EqualFold(r.Username, username) {
		profile, err := s.profiles.GetByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if policy.SeesOwnerView(r, profile) {
			return s.ownerView(ctx, profile)
		}
	}

	var view models.PublicProfileView
	err := cache.Aside(ctx, cache.ProfileKey(username), &view, cache.ProfileTTL, func() error {
		profile, err := s.profiles.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		view = *publicView(s.media, profile)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *ProfileService) ownerView(ctx context.Context, profile *models.Profile) (*models.OwnerProfileView, error) {
	stats, err := s.profiles.Stats(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	favorites, err := s.profiles.FavoriteSlugs(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	follows, err := s.profiles.FollowUsernames(ctx, []uint{profile.ID})
	if err != nil {
		return nil, err
	}
	return &models.OwnerProfileView{
		PublicProfileView: *publicView(s.media, profile),
		ProfileStats:      stats,
		FavoritePosts:     favorites,
		Follows:           follows[profile.ID],
		CreatedAt:         profile.CreatedAt,
		UpdatedAt:         profile.UpdatedAt,
	}, nil
}

// Update applies a full (PUT) or partial (PATCH) update of display name and bio.
// A full update clears fields missing from the input.
func (s *ProfileService) Update(ctx context.Context, r policy.Requester, username string, in UpdateProfileInput, partial bool) (*models.PublicProfileView, error) {
	action := policy.ProfileUpdate
	if partial {
		action = policy.ProfilePartialUpdate
	}
	profile, err := s.authorizeProfile(ctx, r, username, action)
	if err != nil {
		return nil, err
	}

	if !partial {
		empty := ""
		if in.DisplayName == nil {
			in.DisplayName = &empty
		}
		if in.Bio == nil {
			in.Bio = &empty
		}
	}

	updates := map[string]interface{}{}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if err := validation.ValidateLength("display_name", name, 0, maxDisplayNameLength); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		updates["display_name"] = name
	}
	if in.Bio != nil {
		if err := validation.ValidateLength("bio", *in.Bio, 0, models.MaxBioLength); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		updates["bio"] = *in.Bio
	}

	updated, err := s.profiles.Update(ctx, profile.ID, updates)
	if err != nil {
		return nil, err
	}
	return publicView(s.media, updated), nil
}

// Destroy deletes the profile by deleting the account that owns it.
func (s *ProfileService) Destroy(ctx context.Context, r policy.Requester, username string) error {
	profile, err := s.authorizeProfile(ctx, r, username, policy.ProfileDestroy)
	if err != nil {
		return err
	}
	keys, err := s.accounts.Delete(ctx, profile.AccountID)
	if err != nil {
		return err
	}
	removeObjects(ctx, s.media, keys)
	return nil
}

// UploadPicture stores a new profile picture and drops the previous one.
func (s *ProfileService) UploadPicture(ctx context.Context, r policy.Requester, username string, file Upload) (*models.PublicProfileView, error) {
	profile, err := s.authorizeProfile(ctx, r, username, policy.ProfileUploadPicture)
	if err != nil {
		return nil, err
	}
	if len(file.Content) == 0 {
		return nil, models.NewValidationError("No image was uploaded.")
	}
	contentType, ok := storage.DetectImageType(file.Content)
	if !ok {
		return nil, models.NewValidationError(fmt.Sprintf("Unsupported image type %s.", contentType))
	}
	if s.media == nil {
		return nil, models.NewInternalError(fmt.Errorf("media store is not configured"))
	}

	if file.Filename == "" {
		file.Filename = newPictureName()
	}
	key := storage.ObjectKey(storage.ProfilePicturePrefix, profile.ID, file.Filename)
	if err := s.media.Put(ctx, key, bytes.NewReader(file.Content), int64(len(file.Content)), contentType); err != nil {
		return nil, models.NewInternalError(err)
	}
	old, err := s.profiles.SetPicture(ctx, profile.ID, key)
	if err != nil {
		removeObjects(ctx, s.media, []string{key})
		return nil, err
	}
	removeObjects(ctx, s.media, []string{old})

	profile.PictureKey = key
	return publicView(s.media, profile), nil
}

// DeletePicture clears the profile picture.
func (s *ProfileService) DeletePicture(ctx context.Context, r policy.Requester, username string) error {
	profile, err := s.authorizeProfile(ctx, r, username, policy.ProfileDeletePicture)
	if err != nil {
		return err
	}
	old, err := s.profiles.SetPicture(ctx, profile.ID, "")
	if err != nil {
		return err
	}
	removeObjects(ctx, s.media, []string{old})
	return nil
}

// Posts lists the profile's posts visible to r, newest first.
func (s *ProfileService) Posts(ctx context.Context, r policy.Requester, username string, page models.PageRequest) (models.Page[*models.Post], error) {
	if err := policy.Authorize(r, policy.ProfilePosts, 0); err != nil {
		return models.Page[*models.Post]{}, err
	}
	profile, err := s.profiles.GetByUsername(ctx, username)
	if err != nil {
		return models.Page[*models.Post]{}, err
	}
	rows, err := s.posts.ListByProfile(ctx, profile.ID, repository.PostFilter{Scope: policy.PostScope(r), Viewer: r.ProfileID}, page)
	if err != nil {
		return models.Page[*models.Post]{}, err
	}
	return models.NewPage(page, rows), nil
}

// authorizeProfile loads the profile and gates action against its owner.
// Anonymous callers are rejected before the lookup.
func (s *ProfileService) authorizeProfile(ctx context.Context, r policy.Requester, username string, action policy.Action) (*models.Profile, error) {
	if !r.Authenticated() {
		return nil, models.NewUnauthorizedError("")
	}
	profile, err := s.profiles.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(r, action, profile.ID); err != nil {
		return nil, err
	}
	return profile, nil
}

// newPictureName names an upload that arrived without a file name.
func newPictureName() string {
	return uuid.NewString()
}
