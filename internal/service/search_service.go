package service

import (
	"context"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/policy"
	"inkwell/internal/repository"
	"inkwell/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Search types accepted by SearchService.Search.
const (
	SearchPosts    = "post"
	SearchTags     = "tag"
	SearchProfiles = "profile"
)

// SearchResult holds one page per searched collection. A collection that was
// not searched is nil.
type SearchResult struct {
	Posts    *models.Page[*models.Post]             `json:"posts,omitempty"`
	Profiles *models.Page[models.PublicProfileView] `json:"profiles,omitempty"`
}

type SearchService struct {
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	media    storage.ObjectStore
}

func NewSearchService(posts repository.PostRepository, profiles repository.ProfileRepository, media storage.ObjectStore) *SearchService {
	return &SearchService{posts: posts, profiles: profiles, media: media}
}

// Search matches query against posts, tags or profiles depending on kind.
// Any other kind searches posts and profiles concurrently.
func (s *SearchService) Search(ctx context.Context, r policy.Requester, query, kind string, page models.PageRequest) (result SearchResult, err error) {
	span, ctx := observability.NewSpan(ctx, "search.query", attribute.String("search.type", kind))
	defer func() { span.Finish(err) }()

	if err := policy.Authorize(r, policy.Search, 0); err != nil {
		return SearchResult{}, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{}, models.NewValidationError("Search query is required")
	}

	switch strings.ToLower(kind) {
	case SearchPosts:
		posts, err := s.searchPosts(ctx, r, query, page)
		return SearchResult{Posts: posts}, err
	case SearchTags:
		rows, err := s.posts.SearchByTag(ctx, query, r.ProfileID, page)
		if err != nil {
			return SearchResult{}, err
		}
		posts := models.NewPage(page, rows)
		return SearchResult{Posts: &posts}, nil
	case SearchProfiles:
		profiles, err := s.searchProfiles(ctx, query, page)
		return SearchResult{Profiles: profiles}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		posts, err := s.searchPosts(gctx, r, query, page)
		result.Posts = posts
		return err
	})
	g.Go(func() error {
		profiles, err := s.searchProfiles(gctx, query, page)
		result.Profiles = profiles
		return err
	})
	if err := g.Wait(); err != nil {
		return SearchResult{}, err
	}
	return result, nil
}

func (s *SearchService) searchPosts(ctx context.Context, r policy.Requester, query string, page models.PageRequest) (*models.Page[*models.Post], error) {
	rows, err := s.posts.Search(ctx, query, r.ProfileID, page)
	if err != nil {
		return nil, err
	}
	out := models.NewPage(page, rows)
	return &out, nil
}

func (s *SearchService) searchProfiles(ctx context.Context, query string, page models.PageRequest) (*models.Page[models.PublicProfileView], error) {
	rows, err := s.profiles.Search(ctx, query, page)
	if err != nil {
		return nil, err
	}
	out := publicViews(s.media, page, rows)
	return &out, nil
}
