package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/policy"
	"inkwell/internal/repository"
	"inkwell/internal/storage"
	"inkwell/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type PostService struct {
	posts repository.PostRepository
	media storage.ObjectStore
}

type CreatePostInput struct {
	Title string
	Body  string
	Tags  []string
}

// UpdatePostInput carries a PUT or PATCH body. Tags is applied only when
// HasTags is set, so an omitted tag list leaves tags untouched.
type UpdatePostInput struct {
	Title   *string
	Body    *string
	Tags    []string
	HasTags bool
}

func NewPostService(posts repository.PostRepository, media storage.ObjectStore) *PostService {
	return &PostService{posts: posts, media: media}
}

func (s *PostService) Create(ctx context.Context, r policy.Requester, in CreatePostInput) (*models.Post, error) {
	if err := policy.Authorize(r, policy.PostCreate, 0); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validatePostFields(&in.Title, &in.Body); err != nil {
		return nil, err
	}

	post := &models.Post{
		ProfileID: r.ProfileID,
		Title:     in.Title,
		Body:      in.Body,
	}
	if err := s.posts.Create(ctx, post, in.Tags); err != nil {
		return nil, err
	}
	return post, nil
}

// Retrieve returns a visible post. Readers other than the owner bump its
// view count.
func (s *PostService) Retrieve(ctx context.Context, r policy.Requester, slug string) (*models.Post, error) {
	post, err := visiblePostBySlug(ctx, s.posts, r, policy.PostRetrieve, slug)
	if err != nil {
		return nil, err
	}
	if !r.Owns(post.ProfileID) {
		if err := s.posts.IncrementViewCount(ctx, post.ID); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to increment view count", "post_id", post.ID, "error", err)
		} else {
			post.ViewCount++
		}
	}
	return post, nil
}

// List returns the posts visible to r, newest first.
func (s *PostService) List(ctx context.Context, r policy.Requester, page models.PageRequest) (models.Page[*models.Post], error) {
	if err := policy.Authorize(r, policy.PostList, 0); err != nil {
		return models.Page[*models.Post]{}, err
	}
	rows, err := s.posts.List(ctx, filterFor(r), page)
	if err != nil {
		return models.Page[*models.Post]{}, err
	}
	return models.NewPage(page, rows), nil
}

// Update applies a full (PUT) or partial (PATCH) update. A full update
// requires title and body. The slug never changes.
func (s *PostService) Update(ctx context.Context, r policy.Requester, slug string, in UpdatePostInput, partial bool) (*models.Post, error) {
	action := policy.PostUpdate
	if partial {
		action = policy.PostPartialUpdate
	}
	post, err := ownedPostBySlug(ctx, s.posts, r, action, slug)
	if err != nil {
		return nil, err
	}

	if !partial && (in.Title == nil || in.Body == nil) {
		return nil, models.NewValidationError("Title and body are required.")
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		in.Title = &title
		if err := validation.ValidateLength("title", title, 1, models.MaxPostTitleLength); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}
	if in.Body != nil && strings.TrimSpace(*in.Body) == "" {
		return nil, models.NewValidationError("body is required")
	}

	changes := repository.PostChanges{
		Title:       in.Title,
		Body:        in.Body,
		Tags:        in.Tags,
		ReplaceTags: in.HasTags,
	}
	if err := s.posts.Update(ctx, post.ID, changes); err != nil {
		return nil, err
	}
	return s.posts.GetByID(ctx, post.ID, r.ProfileID)
}

func (s *PostService) Destroy(ctx context.Context, r policy.Requester, slug string) error {
	post, err := ownedPostBySlug(ctx, s.posts, r, policy.PostDestroy, slug)
	if err != nil {
		return err
	}
	keys, err := s.posts.Delete(ctx, post.ID)
	if err != nil {
		return err
	}
	removeObjects(ctx, s.media, keys)
	return nil
}

// DeleteAll removes every post of the requester and returns how many were
// deleted.
func (s *PostService) DeleteAll(ctx context.Context, r policy.Requester) (int64, error) {
	if err := policy.Authorize(r, policy.PostDeleteAll, 0); err != nil {
		return 0, err
	}
	n, keys, err := s.posts.DeleteAllByProfile(ctx, r.ProfileID)
	if err != nil {
		return 0, err
	}
	removeObjects(ctx, s.media, keys)
	return n, nil
}

// Likes lists the profiles that liked a visible post.
func (s *PostService) Likes(ctx context.Context, r policy.Requester, slug string, page models.PageRequest) (models.Page[models.PublicProfileView], error) {
	post, err := visiblePostBySlug(ctx, s.posts, r, policy.PostLikes, slug)
	if err != nil {
		return models.Page[models.PublicProfileView]{}, err
	}
	rows, err := s.posts.Likers(ctx, post.ID, page)
	if err != nil {
		return models.Page[models.PublicProfileView]{}, err
	}
	return publicViews(s.media, page, rows), nil
}

// Favorited lists the requester's favorite posts that are still visible.
func (s *PostService) Favorited(ctx context.Context, r policy.Requester, page models.PageRequest) (models.Page[*models.Post], error) {
	if err := policy.Authorize(r, policy.PostFavorited, 0); err != nil {
		return models.Page[*models.Post]{}, err
	}
	rows, err := s.posts.Favorited(ctx, r.ProfileID, filterFor(r), page)
	if err != nil {
		return models.Page[*models.Post]{}, err
	}
	return models.NewPage(page, rows), nil
}

func (s *PostService) Tags(ctx context.Context, r policy.Requester, slug string) ([]models.Tag, error) {
	post, err := visiblePostBySlug(ctx, s.posts, r, policy.PostTags, slug)
	if err != nil {
		return nil, err
	}
	return s.posts.Tags(ctx, post.ID)
}

// UploadImages stores files as new trailing images of the post. Nothing is
// kept when any file is rejected.
func (s *PostService) UploadImages(ctx context.Context, r policy.Requester, slug string, files []Upload) (images []models.PostImage, err error) {
	span, ctx := observability.NewSpan(ctx, "post.upload_images",
		attribute.String("post.slug", slug), attribute.Int("files", len(files)))
	defer func() { span.Finish(err) }()

	post, err := ownedPostBySlug(ctx, s.posts, r, policy.PostUploadImages, slug)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, models.NewValidationError("No images were uploaded.")
	}
	if len(files) > models.MaxPostImages {
		return nil, models.NewValidationError(fmt.Sprintf("A post can have at most %d images.", models.MaxPostImages))
	}
	if s.media == nil {
		return nil, models.NewInternalError(fmt.Errorf("media store is not configured"))
	}

	images = make([]models.PostImage, 0, len(files))
	for _, f := range files {
		contentType, ok := storage.DetectImageType(f.Content)
		if !ok {
			return nil, models.NewValidationError(fmt.Sprintf("%s is not a supported image (%s).", f.Filename, contentType))
		}
		images = append(images, models.PostImage{
			ObjectKey:   storage.ObjectKey(storage.PostImagePrefix, post.ID, f.Filename),
			ContentType: contentType,
		})
	}

	stored := make([]string, 0, len(images))
	for i, img := range images {
		content := files[i].Content
		if err := s.media.Put(ctx, img.ObjectKey, bytes.NewReader(content), int64(len(content)), img.ContentType); err != nil {
			removeObjects(ctx, s.media, stored)
			return nil, models.NewInternalError(err)
		}
		stored = append(stored, img.ObjectKey)
	}

	if err := s.posts.AddImages(ctx, post.ID, images); err != nil {
		removeObjects(ctx, s.media, stored)
		return nil, err
	}
	return images, nil
}

// Download writes a zip archive of the post's images to w in position order.
func (s *PostService) Download(ctx context.Context, r policy.Requester, slug string, w io.Writer) error {
	post, err := visiblePostBySlug(ctx, s.posts, r, policy.PostDownload, slug)
	if err != nil {
		return err
	}
	images, err := s.posts.Images(ctx, post.ID)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return models.NewValidationError("This post has no images to download.")
	}
	if s.media == nil {
		return models.NewInternalError(fmt.Errorf("media store is not configured"))
	}

	zw := zip.NewWriter(w)
	for _, img := range images {
		if err := s.addToArchive(ctx, zw, img); err != nil {
			return models.NewInternalError(err)
		}
	}
	if err := zw.Close(); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *PostService) addToArchive(ctx context.Context, zw *zip.Writer, img models.PostImage) error {
	src, err := s.media.Get(ctx, img.ObjectKey)
	if err != nil {
		return fmt.Errorf("get %s: %w", img.ObjectKey, err)
	}
	defer src.Close()

	dst, err := zw.Create(fmt.Sprintf("%02d-%s", img.Position+1, path.Base(img.ObjectKey)))
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

func filterFor(r policy.Requester) repository.PostFilter {
	return repository.PostFilter{Scope: policy.PostScope(r), Viewer: r.ProfileID}
}

func validatePostFields(title, body *string) error {
	if err := validation.ValidateLength("title", *title, 1, models.MaxPostTitleLength); err != nil {
		return models.NewValidationError(err.Error())
	}
	if strings.TrimSpace(*body) == "" {
		return models.NewValidationError("body is required")
	}
	return nil
}
