package service

import (
	"context"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/policy"
	"inkwell/internal/repository"
	"inkwell/internal/storage"
	"inkwell/internal/validation"
)

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	media    storage.ObjectStore
	notifier Publisher
}

type CreateCommentInput struct {
	PostID   uint
	ParentID *uint
	Body     string
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	media storage.ObjectStore,
	notifier Publisher,
) *CommentService {
	return &CommentService{comments: comments, posts: posts, media: media, notifier: notifier}
}

// Create adds a comment to a post the requester can see. A parent comment
// must belong to the same post.
func (s *CommentService) Create(ctx context.Context, r policy.Requester, in CreateCommentInput) (*models.Comment, error) {
	if err := policy.Authorize(r, policy.CommentCreate, 0); err != nil {
		return nil, err
	}
	if err := validateCommentBody(in.Body); err != nil {
		return nil, err
	}
	if in.PostID == 0 {
		return nil, models.NewValidationError("post is required")
	}

	post, err := s.posts.GetByID(ctx, in.PostID, r.ProfileID)
	if err != nil {
		return nil, err
	}
	if err := visiblePost(r, post, in.PostID); err != nil {
		return nil, err
	}

	if in.ParentID != nil {
		parent, err := s.comments.GetByID(ctx, *in.ParentID, r.ProfileID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return nil, models.NewValidationError("Parent comment does not exist.")
			}
			return nil, err
		}
		if parent.PostID != post.ID {
			return nil, models.NewValidationError("Parent comment must belong to the same post.")
		}
	}

	comment := &models.Comment{
		ProfileID: r.ProfileID,
		PostID:    post.ID,
		ParentID:  in.ParentID,
		Body:      in.Body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	if post.ProfileID != r.ProfileID {
		notify(ctx, s.notifier, post.ProfileID, notifications.Event{
			Type:      notifications.EventNewComment,
			Actor:     r.Username,
			PostSlug:  post.Slug,
			CommentID: comment.ID,
		})
	}
	return comment, nil
}

// Retrieve returns a comment whose post is visible to r.
func (s *CommentService) Retrieve(ctx context.Context, r policy.Requester, id uint) (*models.Comment, error) {
	comment, err := s.visible(ctx, r, policy.CommentRetrieve, id)
	return comment, err
}

// List returns comments on every post visible to r, newest first.
func (s *CommentService) List(ctx context.Context, r policy.Requester, page models.PageRequest) (models.Page[*models.Comment], error) {
	if err := policy.Authorize(r, policy.CommentList, 0); err != nil {
		return models.Page[*models.Comment]{}, err
	}
	rows, err := s.comments.List(ctx, policy.PostScope(r), r.ProfileID, page)
	if err != nil {
		return models.Page[*models.Comment]{}, err
	}
	return models.NewPage(page, rows), nil
}

// ForPost returns the ranked top-level comments of a post.
func (s *CommentService) ForPost(ctx context.Context, r policy.Requester, slug string, page models.PageRequest) (models.Page[*models.Comment], error) {
	post, err := visiblePostBySlug(ctx, s.posts, r, policy.PostComments, slug)
	if err != nil {
		return models.Page[*models.Comment]{}, err
	}
	rows, err := s.comments.ListByPost(ctx, post.ID, r.ProfileID, page)
	if err != nil {
		return models.Page[*models.Comment]{}, err
	}
	return models.NewPage(page, rows), nil
}

// Replies returns the ranked direct replies of a comment.
func (s *CommentService) Replies(ctx context.Context, r policy.Requester, id uint, page models.PageRequest) (models.Page[*models.Comment], error) {
	comment, err := s.visible(ctx, r, policy.CommentReplies, id)
	if err != nil {
		return models.Page[*models.Comment]{}, err
	}
	rows, err := s.comments.Replies(ctx, comment.ID, r.ProfileID, page)
	if err != nil {
		return models.Page[*models.Comment]{}, err
	}
	return models.NewPage(page, rows), nil
}

// Update replaces the body. A partial update without a body is a no-op.
func (s *CommentService) Update(ctx context.Context, r policy.Requester, id uint, body *string, partial bool) (*models.Comment, error) {
	action := policy.CommentUpdate
	if partial {
		action = policy.CommentPartialUpdate
	}
	comment, err := s.owned(ctx, r, action, id)
	if err != nil {
		return nil, err
	}
	if body == nil {
		if !partial {
			return nil, models.NewValidationError("body is required")
		}
		return comment, nil
	}
	if err := validateCommentBody(*body); err != nil {
		return nil, err
	}
	if err := s.comments.Update(ctx, comment.ID, *body); err != nil {
		return nil, err
	}
	return s.comments.GetByID(ctx, comment.ID, r.ProfileID)
}

// Destroy deletes a comment. Its replies become top-level comments.
func (s *CommentService) Destroy(ctx context.Context, r policy.Requester, id uint) error {
	comment, err := s.owned(ctx, r, policy.CommentDestroy, id)
	if err != nil {
		return err
	}
	return s.comments.Delete(ctx, comment.ID)
}

// Likes lists the profiles that liked a comment.
func (s *CommentService) Likes(ctx context.Context, r policy.Requester, id uint, page models.PageRequest) (models.Page[models.PublicProfileView], error) {
	comment, err := s.visible(ctx, r, policy.CommentLikes, id)
	if err != nil {
		return models.Page[models.PublicProfileView]{}, err
	}
	rows, err := s.comments.Likers(ctx, comment.ID, page)
	if err != nil {
		return models.Page[models.PublicProfileView]{}, err
	}
	return publicViews(s.media, page, rows), nil
}

// visible authorizes a and loads the comment. A comment on a post r cannot
// see is reported missing.
func (s *CommentService) visible(ctx context.Context, r policy.Requester, a policy.Action, id uint) (*models.Comment, error) {
	if err := policy.Authorize(r, a, 0); err != nil {
		return nil, err
	}
	comment, err := s.comments.GetByID(ctx, id, r.ProfileID)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, comment.PostID, r.ProfileID)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewPost(r, post) {
		return nil, models.NewNotFoundError("Comment", id)
	}
	return comment, nil
}

func (s *CommentService) owned(ctx context.Context, r policy.Requester, a policy.Action, id uint) (*models.Comment, error) {
	if !r.Authenticated() {
		return nil, models.NewUnauthorizedError("")
	}
	comment, err := s.visible(ctx, r, policy.CommentRetrieve, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(r, a, comment.ProfileID); err != nil {
		return nil, err
	}
	return comment, nil
}

func validateCommentBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return models.NewValidationError("body is required")
	}
	if err := validation.ValidateLength("body", body, 1, maxCommentLength); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}
