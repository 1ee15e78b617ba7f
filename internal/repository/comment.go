package repository

import (
	"context"

	"inkwell/internal/models"
	"inkwell/internal/policy"

	"gorm.io/gorm"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint, viewer uint) (*models.Comment, error)
	List(ctx context.Context, scope policy.Scope, viewer uint, page models.PageRequest) ([]*models.Comment, error)
	ListByPost(ctx context.Context, postID uint, viewer uint, page models.PageRequest) ([]*models.Comment, error)
	Replies(ctx context.Context, parentID uint, viewer uint, page models.PageRequest) ([]*models.Comment, error)
	Update(ctx context.Context, id uint, body string) error
	Delete(ctx context.Context, id uint) error
	ToggleLike(ctx context.Context, profileID, commentID uint) (models.ToggleOutcome, error)
	LikeCount(ctx context.Context, commentID uint) (int64, error)
	Likers(ctx context.Context, commentID uint, page models.PageRequest) ([]models.Profile, error)
}

type commentRepository struct {
	db       *gorm.DB
	mediaURL MediaURLFunc
}

// NewCommentRepository returns a new CommentRepository implementation.
func NewCommentRepository(db *gorm.DB, mediaURL MediaURLFunc) CommentRepository {
	return &commentRepository{db: db, mediaURL: mediaURL}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return r.loadAuthors(ctx, r.db, []*models.Comment{comment})
}

func (r *commentRepository) GetByID(ctx context.Context, id uint, viewer uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.applyCommentDetails(r.db.WithContext(ctx), viewer).First(&comment, id).Error; err != nil {
		return nil, translate(err, "Comment", id)
	}
	if err := r.loadAuthors(ctx, r.db, []*models.Comment{&comment}); err != nil {
		return nil, err
	}
	return &comment, nil
}

// List returns comments on posts visible under scope, newest first.
func (r *commentRepository) List(ctx context.Context, scope policy.Scope, viewer uint, page models.PageRequest) ([]*models.Comment, error) {
	db := readDB(r.db)
	visible := applyScope(db.Model(&models.Post{}).Select("posts.id"), scope)
	q := r.applyCommentDetails(db.WithContext(ctx), viewer).
		Where("comments.post_id IN (?)", visible).
		Order("comments.created_at DESC").Order("comments.id DESC")
	return r.find(ctx, db, q, page)
}

// ListByPost returns the top-level comments of a post ranked by likes.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint, viewer uint, page models.PageRequest) ([]*models.Comment, error) {
	db := readDB(r.db)
	q := r.ranked(r.applyCommentDetails(db.WithContext(ctx), viewer).
		Where("comments.post_id = ? AND comments.parent_id IS NULL", postID))
	return r.find(ctx, db, q, page)
}

// Replies returns the direct replies of a comment ranked by likes.
func (r *commentRepository) Replies(ctx context.Context, parentID uint, viewer uint, page models.PageRequest) ([]*models.Comment, error) {
	db := readDB(r.db)
	q := r.ranked(r.applyCommentDetails(db.WithContext(ctx), viewer).
		Where("comments.parent_id = ?", parentID))
	return r.find(ctx, db, q, page)
}

// ranked orders by like count, then newest, then id for a stable order.
func (r *commentRepository) ranked(db *gorm.DB) *gorm.DB {
	return db.Order("like_count DESC").Order("comments.created_at DESC").Order("comments.id DESC")
}

func (r *commentRepository) find(ctx context.Context, db *gorm.DB, q *gorm.DB, page models.PageRequest) ([]*models.Comment, error) {
	var comments []*models.Comment
	if err := paginate(q, page).Find(&comments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.loadAuthors(ctx, db, comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepository) applyCommentDetails(db *gorm.DB, viewer uint) *gorm.DB {
	selectQuery := "comments.*, " +
		"(SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = comments.id) AS like_count, " +
		"(SELECT COUNT(*) FROM comments AS replies WHERE replies.parent_id = comments.id) AS replies_count"

	if viewer != 0 {
		return db.Model(&models.Comment{}).Select(selectQuery+
			", EXISTS(SELECT 1 FROM comment_likes WHERE comment_likes.comment_id = comments.id AND comment_likes.profile_id = ?) AS is_liked",
			viewer)
	}
	return db.Model(&models.Comment{}).Select(selectQuery + ", false AS is_liked")
}

func (r *commentRepository) loadAuthors(ctx context.Context, db *gorm.DB, comments []*models.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ProfileID)
	}
	var profiles []models.Profile
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return models.NewInternalError(err)
	}
	byID := make(map[uint]*models.Profile, len(profiles))
	for i := range profiles {
		byID[profiles[i].ID] = &profiles[i]
	}
	for _, c := range comments {
		if p := byID[c.ProfileID]; p != nil {
			c.Author = models.NewPublicProfileView(p, r.mediaURL.url(p.PictureKey))
		}
	}
	return nil
}

func (r *commentRepository) Update(ctx context.Context, id uint, body string) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("body", body)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

// Delete removes a comment and its likes. Direct replies survive as
// top-level comments.
func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Comment{}).Where("parent_id = ?", id).Update("parent_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("comment_id = ?", id).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Comment{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return translate(err, "Comment", id)
}

func (r *commentRepository) ToggleLike(ctx context.Context, profileID, commentID uint) (models.ToggleOutcome, error) {
	return toggleRelation(ctx, r.db, &models.CommentLike{ProfileID: profileID, CommentID: commentID},
		map[string]interface{}{"profile_id": profileID, "comment_id": commentID})
}

func (r *commentRepository) LikeCount(ctx context.Context, commentID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.CommentLike{}).Where("comment_id = ?", commentID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *commentRepository) Likers(ctx context.Context, commentID uint, page models.PageRequest) ([]models.Profile, error) {
	var profiles []models.Profile
	err := paginate(readDB(r.db).WithContext(ctx).
		Joins("JOIN comment_likes ON comment_likes.profile_id = profiles.id").
		Where("comment_likes.comment_id = ?", commentID).
		Order("comment_likes.created_at DESC").Order("profiles.id DESC"), page).
		Find(&profiles).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}
