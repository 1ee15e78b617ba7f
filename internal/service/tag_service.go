package service

import (
	"context"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/policy"
	"inkwell/internal/repository"
)

type TagService struct {
	tags  repository.TagRepository
	posts repository.PostRepository
}

func NewTagService(tags repository.TagRepository, posts repository.PostRepository) *TagService {
	return &TagService{tags: tags, posts: posts}
}

func (s *TagService) List(ctx context.Context, r policy.Requester, page models.PageRequest) (models.Page[models.Tag], error) {
	if err := policy.Authorize(r, policy.TagList, 0); err != nil {
		return models.Page[models.Tag]{}, err
	}
	rows, err := s.tags.List(ctx, page)
	if err != nil {
		return models.Page[models.Tag]{}, err
	}
	return models.NewPage(page, rows), nil
}

func (s *TagService) Retrieve(ctx context.Context, r policy.Requester, slug string) (*models.Tag, error) {
	if err := policy.Authorize(r, policy.TagRetrieve, 0); err != nil {
		return nil, err
	}
	return s.tags.GetBySlug(ctx, slug)
}

// Create adds a tag with no posts. Tags left without posts are collected by
// the next post mutation that touches them.
func (s *TagService) Create(ctx context.Context, r policy.Requester, name string) (*models.Tag, error) {
	if err := policy.Authorize(r, policy.TagCreate, 0); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, models.NewValidationError("name is required")
	}
	return s.tags.Create(ctx, name)
}

// Posts lists the tag's posts visible to r, newest first.
func (s *TagService) Posts(ctx context.Context, r policy.Requester, slug string, page models.PageRequest) (models.Page[*models.Post], error) {
	if err := policy.Authorize(r, policy.TagPosts, 0); err != nil {
		return models.Page[*models.Post]{}, err
	}
	tag, err := s.tags.GetBySlug(ctx, slug)
	if err != nil {
		return models.Page[*models.Post]{}, err
	}
	rows, err := s.posts.ListByTag(ctx, tag.ID, filterFor(r), page)
	if err != nil {
		return models.Page[*models.Post]{}, err
	}
	return models.NewPage(page, rows), nil
}
