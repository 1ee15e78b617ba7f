package service

import (
	"context"

	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/policy"
	"inkwell/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

type FeedService struct {
	posts repository.PostRepository
}

func NewFeedService(posts repository.PostRepository) *FeedService {
	return &FeedService{posts: posts}
}

// Feed returns public posts of the profiles r follows, newest first.
func (s *FeedService) Feed(ctx context.Context, r policy.Requester, page models.PageRequest) (result models.Page[*models.Post], err error) {
	span, ctx := observability.NewSpan(ctx, "feed.compose", attribute.Int("page", page.Page))
	defer func() { span.Finish(err) }()

	if err := policy.Authorize(r, policy.Feed, 0); err != nil {
		return models.Page[*models.Post]{}, err
	}
	rows, err := s.posts.Feed(ctx, r.ProfileID, page)
	if err != nil {
		return models.Page[*models.Post]{}, err
	}
	return models.NewPage(page, rows), nil
}
