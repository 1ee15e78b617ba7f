package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/policy"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostFilter carries the visibility scope of a posts query and the profile
// whose likes and favorites annotate the results.
type PostFilter struct {
	Scope  policy.Scope
	Viewer uint
}

// PostChanges is a partial update. Nil fields are left untouched; Tags is
// applied only when ReplaceTags is set.
type PostChanges struct {
	Title       *string
	Body        *string
	Tags        []string
	ReplaceTags bool
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post, tagNames []string) error
	GetBySlug(ctx context.Context, slug string, viewer uint) (*models.Post, error)
	GetByID(ctx context.Context, id uint, viewer uint) (*models.Post, error)
	List(ctx context.Context, f PostFilter, page models.PageRequest) ([]*models.Post, error)
	ListByProfile(ctx context.Context, profileID uint, f PostFilter, page models.PageRequest) ([]*models.Post, error)
	ListByTag(ctx context.Context, tagID uint, f PostFilter, page models.PageRequest) ([]*models.Post, error)
	Favorited(ctx context.Context, profileID uint, f PostFilter, page models.PageRequest) ([]*models.Post, error)
	Feed(ctx context.Context, followerID uint, page models.PageRequest) ([]*models.Post, error)
	Search(ctx context.Context, query string, viewer uint, page models.PageRequest) ([]*models.Post, error)
	SearchByTag(ctx context.Context, name string, viewer uint, page models.PageRequest) ([]*models.Post, error)
	Update(ctx context.Context, postID uint, changes PostChanges) error
	Delete(ctx context.Context, postID uint) ([]string, error)
	DeleteAllByProfile(ctx context.Context, profileID uint) (int64, []string, error)
	IncrementViewCount(ctx context.Context, postID uint) error
	ToggleLike(ctx context.Context, profileID, postID uint) (models.ToggleOutcome, error)
	LikeCount(ctx context.Context, postID uint) (int64, error)
	ToggleFavorite(ctx context.Context, profileID, postID uint) (models.ToggleOutcome, error)
	ToggleFeature(ctx context.Context, postID uint) (models.ToggleOutcome, error)
	TogglePublish(ctx context.Context, postID uint) (bool, error)
	Likers(ctx context.Context, postID uint, page models.PageRequest) ([]models.Profile, error)
	Tags(ctx context.Context, postID uint) ([]models.Tag, error)
	Images(ctx context.Context, postID uint) ([]models.PostImage, error)
	AddImages(ctx context.Context, postID uint, images []models.PostImage) error
}

// postRepository implements PostRepository
type postRepository struct {
	db       *gorm.DB
	mediaURL MediaURLFunc
}

// NewPostRepository creates a new post repository. mediaURL resolves image
// and profile picture keys; it may be nil.
func NewPostRepository(db *gorm.DB, mediaURL MediaURLFunc) PostRepository {
	return &postRepository{db: db, mediaURL: mediaURL}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post, tagNames []string) error {
	base := baseSlug(post.Title)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := resolveTags(tx, tagNames)
		if err != nil {
			return err
		}

		next, err := nextSlugSuffix(tx, base)
		if err != nil {
			return err
		}

		created := false
		for attempt := 0; attempt < maxSlugAttempts; attempt++ {
			post.ID = 0
			post.Slug = slugCandidate(base, next+attempt)
			err := tx.Transaction(func(sp *gorm.DB) error {
				return sp.Create(post).Error
			})
			if err == nil {
				created = true
				break
			}
			if !isUniqueConstraintError(err) {
				return err
			}
			observability.SlugCollisions.Inc()
		}
		if !created {
			return models.NewConflictError("Could not allocate a unique slug for this title.")
		}

		if err := attachTags(tx, post.ID, tags); err != nil {
			return err
		}
		post.Tags = tags
		return nil
	})
	if err != nil {
		return translate(err, "Post", post.Slug)
	}
	invalidateTags(ctx, post.Tags)
	if post.Tags == nil {
		post.Tags = []models.Tag{}
	}
	post.Images = []models.PostImage{}
	return nil
}

// baseSlug derives the slug stem of a title, leaving room for a numeric suffix.
func baseSlug(title string) string {
	s := slug.Make(title)
	if s == "" {
		s = "post"
	}
	if max := models.MaxPostSlugLength - 12; len(s) > max {
		s = strings.TrimRight(s[:max], "-")
	}
	return s
}

func slugCandidate(base string, n int) string {
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}

// nextSlugSuffix reads existing base / base-N slugs and returns the first free
// suffix: 0 for the bare base, else the smallest unused N >= 1. It is only a
// hint; the insert decides.
func nextSlugSuffix(tx *gorm.DB, base string) (int, error) {
	var existing []string
	err := tx.Model(&models.Post{}).
		Where("slug = ? OR slug LIKE ? ESCAPE '\\'", base, escapeLike(base)+"-%").
		Pluck("slug", &existing).Error
	if err != nil {
		return 0, err
	}

	taken := false
	used := make(map[int]struct{}, len(existing))
	for _, s := range existing {
		if s == base {
			taken = true
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(s, base+"-"))
		if err != nil || n <= 0 {
			continue
		}
		used[n] = struct{}{}
	}
	if !taken {
		return 0, nil
	}
	n := 1
	for {
		if _, ok := used[n]; !ok {
			return n, nil
		}
		n++
	}
}

func (r *postRepository) GetBySlug(ctx context.Context, postSlug string, viewer uint) (*models.Post, error) {
	var post models.Post
	err := r.applyPostDetails(r.db.WithContext(ctx), viewer).
		Where("posts.slug = ?", postSlug).
		First(&post).Error
	if err != nil {
		return nil, translate(err, "Post", postSlug)
	}
	if err := r.enrich(ctx, r.db, []*models.Post{&post}); err != nil {
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewer uint) (*models.Post, error) {
	var post models.Post
	if err := r.applyPostDetails(r.db.WithContext(ctx), viewer).First(&post, id).Error; err != nil {
		return nil, translate(err, "Post", id)
	}
	if err := r.enrich(ctx, r.db, []*models.Post{&post}); err != nil {
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, f PostFilter, page models.PageRequest) ([]*models.Post, error) {
	db := readDB(r.db)
	return r.find(ctx, db, applyScope(r.applyPostDetails(db.WithContext(ctx), f.Viewer), f.Scope), page)
}

func (r *postRepository) ListByProfile(ctx context.Context, profileID uint, f PostFilter, page models.PageRequest) ([]*models.Post, error) {
	db := readDB(r.db)
	q := applyScope(r.applyPostDetails(db.WithContext(ctx), f.Viewer), f.Scope).
		Where("posts.profile_id = ?", profileID)
	return r.find(ctx, db, q, page)
}

func (r *postRepository) ListByTag(ctx context.Context, tagID uint, f PostFilter, page models.PageRequest) ([]*models.Post, error) {
	db := readDB(r.db)
	q := applyScope(r.applyPostDetails(db.WithContext(ctx), f.Viewer), f.Scope).
		Where("EXISTS (SELECT 1 FROM post_tags WHERE post_tags.post_id = posts.id AND post_tags.tag_id = ?)", tagID)
	return r.find(ctx, db, q, page)
}

func (r *postRepository) Favorited(ctx context.Context, profileID uint, f PostFilter, page models.PageRequest) ([]*models.Post, error) {
	db := readDB(r.db)
	q := applyScope(r.applyPostDetails(db.WithContext(ctx), f.Viewer), f.Scope).
		Joins("JOIN profile_favorite_posts fav ON fav.post_id = posts.id AND fav.profile_id = ?", profileID).
		Order("fav.created_at DESC")
	return r.find(ctx, db, q, page)
}

// Feed returns public posts written by profiles the follower follows.
func (r *postRepository) Feed(ctx context.Context, followerID uint, page models.PageRequest) ([]*models.Post, error) {
	db := readDB(r.db)
	q := applyScope(r.applyPostDetails(db.WithContext(ctx), followerID), policy.PublicOnly).
		Where("posts.profile_id IN (SELECT followee_id FROM profile_follows WHERE follower_id = ?)", followerID)
	return r.find(ctx, db, q, page)
}

// Search matches public posts whose title, body or any tag name contains query.
func (r *postRepository) Search(ctx context.Context, query string, viewer uint, page models.PageRequest) ([]*models.Post, error) {
	db := readDB(r.db)
	pattern := containsPattern(query)
	q := applyScope(r.applyPostDetails(db.WithContext(ctx), viewer), policy.PublicOnly).
		Where(
			"(LOWER(posts.title) LIKE ? ESCAPE '\\' OR LOWER(posts.body) LIKE ? ESCAPE '\\' OR "+
				"EXISTS (SELECT 1 FROM post_tags JOIN tags ON tags.id = post_tags.tag_id "+
				"WHERE post_tags.post_id = posts.id AND LOWER(tags.name) LIKE ? ESCAPE '\\'))",
			pattern, pattern, pattern,
		)
	return r.find(ctx, db, q, page)
}

// SearchByTag matches public posts carrying a tag named exactly name, ignoring case.
func (r *postRepository) SearchByTag(ctx context.Context, name string, viewer uint, page models.PageRequest) ([]*models.Post, error) {
	db := readDB(r.db)
	q := applyScope(r.applyPostDetails(db.WithContext(ctx), viewer), policy.PublicOnly).
		Where("EXISTS (SELECT 1 FROM post_tags JOIN tags ON tags.id = post_tags.tag_id "+
			"WHERE post_tags.post_id = posts.id AND LOWER(tags.name) = ?)", strings.ToLower(strings.TrimSpace(name)))
	return r.find(ctx, db, q, page)
}

func (r *postRepository) find(ctx context.Context, db *gorm.DB, q *gorm.DB, page models.PageRequest) ([]*models.Post, error) {
	var posts []*models.Post
	err := paginate(q.Order("posts.created_at DESC").Order("posts.id DESC"), page).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.enrich(ctx, db, posts); err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// applyPostDetails adds subqueries to fetch counts and the viewer's flags in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB, viewer uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count, " +
		"(SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = posts.id) AS like_count"

	if viewer != 0 {
		return db.Model(&models.Post{}).Select(selectQuery+
			", EXISTS(SELECT 1 FROM post_likes WHERE post_likes.post_id = posts.id AND post_likes.profile_id = ?) AS is_liked"+
			", EXISTS(SELECT 1 FROM profile_favorite_posts WHERE profile_favorite_posts.post_id = posts.id AND profile_favorite_posts.profile_id = ?) AS is_favorited",
			viewer, viewer)
	}

	return db.Model(&models.Post{}).Select(selectQuery + ", false AS is_liked, false AS is_favorited")
}

// enrich loads authors, tags and images of posts in three batched queries.
func (r *postRepository) enrich(ctx context.Context, db *gorm.DB, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	postIDs := make([]uint, 0, len(posts))
	profileIDs := make([]uint, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		profileIDs = append(profileIDs, p.ProfileID)
		p.Tags = []models.Tag{}
		p.Images = []models.PostImage{}
	}

	var profiles []models.Profile
	if err := db.WithContext(ctx).Where("id IN ?", profileIDs).Find(&profiles).Error; err != nil {
		return err
	}
	authors := make(map[uint]*models.PublicProfileView, len(profiles))
	for i := range profiles {
		authors[profiles[i].ID] = models.NewPublicProfileView(&profiles[i], r.mediaURL.url(profiles[i].PictureKey))
	}

	type taggedRow struct {
		models.Tag
		PostID uint
	}
	var tagged []taggedRow
	if err := db.WithContext(ctx).Table("tags").
		Select("tags.*, post_tags.post_id AS post_id").
		Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Where("post_tags.post_id IN ?", postIDs).
		Order("tags.name ASC").
		Scan(&tagged).Error; err != nil {
		return err
	}

	var images []models.PostImage
	if err := db.WithContext(ctx).Where("post_id IN ?", postIDs).
		Order("position ASC").Order("id ASC").
		Find(&images).Error; err != nil {
		return err
	}

	byID := make(map[uint]*models.Post, len(posts))
	for _, p := range posts {
		p.Author = authors[p.ProfileID]
		byID[p.ID] = p
	}
	for _, t := range tagged {
		if p := byID[t.PostID]; p != nil {
			p.Tags = append(p.Tags, t.Tag)
		}
	}
	for _, img := range images {
		if p := byID[img.PostID]; p != nil {
			img.URL = r.mediaURL.url(img.ObjectKey)
			p.Images = append(p.Images, img)
		}
	}
	return nil
}

func (r *postRepository) Update(ctx context.Context, postID uint, changes PostChanges) error {
	var touched []models.Tag
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if changes.Title != nil {
			updates["title"] = *changes.Title
		}
		if changes.Body != nil {
			updates["body"] = *changes.Body
		}
		if len(updates) > 0 {
			res := tx.Model(&models.Post{}).Where("id = ?", postID).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}

		if !changes.ReplaceTags {
			return nil
		}
		current, err := tagsOfPost(tx, postID)
		if err != nil {
			return err
		}
		next, err := resolveTags(tx, changes.Tags)
		if err != nil {
			return err
		}
		removed, added := diffTags(current, next)
		if err := detachTags(tx, postID, removed); err != nil {
			return err
		}
		if err := attachTags(tx, postID, added); err != nil {
			return err
		}
		touched = append(removed, added...)
		return collectTags(tx, removed)
	})
	if err != nil {
		return translate(err, "Post", postID)
	}
	invalidateTags(ctx, touched)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, postID uint) ([]string, error) {
	var keys []string
	var touched []models.Tag
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		keys, touched, err = deletePostTx(tx, postID)
		return err
	})
	if err != nil {
		return nil, translate(err, "Post", postID)
	}
	invalidateTags(ctx, touched)
	return keys, nil
}

func (r *postRepository) DeleteAllByProfile(ctx context.Context, profileID uint) (int64, []string, error) {
	var keys []string
	var touched []models.Tag
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, keys, touched, err = deleteProfilePostsTx(tx, profileID)
		return err
	})
	if err != nil {
		return 0, nil, translate(err, "Profile", profileID)
	}
	invalidateTags(ctx, touched)
	return deleted, keys, nil
}

// deleteProfilePostsTx removes every post of a profile.
func deleteProfilePostsTx(tx *gorm.DB, profileID uint) (int64, []string, []models.Tag, error) {
	var ids []uint
	if err := tx.Model(&models.Post{}).Where("profile_id = ?", profileID).Pluck("id", &ids).Error; err != nil {
		return 0, nil, nil, err
	}
	var keys []string
	var touched []models.Tag
	for _, id := range ids {
		k, t, err := deletePostTx(tx, id)
		if err != nil {
			return 0, nil, nil, err
		}
		keys = append(keys, k...)
		touched = append(touched, t...)
	}
	return int64(len(ids)), keys, touched, nil
}

// deletePostTx removes a post with everything hanging off it and runs the tag
// lifecycle for its tags. It returns the object keys of the post's images.
func deletePostTx(tx *gorm.DB, postID uint) ([]string, []models.Tag, error) {
	tags, err := tagsOfPost(tx, postID)
	if err != nil {
		return nil, nil, err
	}
	if err := detachTags(tx, postID, tags); err != nil {
		return nil, nil, err
	}
	if err := collectTags(tx, tags); err != nil {
		return nil, nil, err
	}

	var keys []string
	if err := tx.Model(&models.PostImage{}).Where("post_id = ?", postID).Pluck("object_key", &keys).Error; err != nil {
		return nil, nil, err
	}

	commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", postID)
	if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
		return nil, nil, err
	}
	for _, child := range []interface{}{&models.Comment{}, &models.PostLike{}, &models.FavoritePost{}, &models.PostImage{}} {
		if err := tx.Where("post_id = ?", postID).Delete(child).Error; err != nil {
			return nil, nil, err
		}
	}

	res := tx.Delete(&models.Post{}, postID)
	if res.Error != nil {
		return nil, nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil, gorm.ErrRecordNotFound
	}
	return keys, tags, nil
}

// IncrementViewCount bumps the counter in place so concurrent readers never
// lose an increment.
func (r *postRepository) IncrementViewCount(ctx context.Context, postID uint) error {
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) ToggleLike(ctx context.Context, profileID, postID uint) (models.ToggleOutcome, error) {
	return toggleRelation(ctx, r.db, &models.PostLike{ProfileID: profileID, PostID: postID},
		map[string]interface{}{"profile_id": profileID, "post_id": postID})
}

func (r *postRepository) LikeCount(ctx context.Context, postID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *postRepository) ToggleFavorite(ctx context.Context, profileID, postID uint) (models.ToggleOutcome, error) {
	return toggleRelation(ctx, r.db, &models.FavoritePost{ProfileID: profileID, PostID: postID},
		map[string]interface{}{"profile_id": profileID, "post_id": postID})
}

// ToggleFeature flips is_featured. The owner's profile row is locked for the
// duration so concurrent features of the same owner serialize on the cap.
func (r *postRepository) ToggleFeature(ctx context.Context, postID uint) (models.ToggleOutcome, error) {
	var outcome models.ToggleOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.Post
		if err := tx.Select("id", "profile_id").First(&target, postID).Error; err != nil {
			return err
		}
		ownerID := target.ProfileID

		var owner models.Profile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&owner, ownerID).Error; err != nil {
			return err
		}

		// Re-read under the lock.
		var post models.Post
		if err := tx.Select("id", "is_featured").First(&post, postID).Error; err != nil {
			return err
		}
		if post.IsFeatured {
			outcome = models.ToggleRemoved
			return tx.Model(&models.Post{}).Where("id = ?", postID).Update("is_featured", false).Error
		}

		var featured int64
		if err := tx.Model(&models.Post{}).
			Where("profile_id = ? AND is_featured = ?", ownerID, true).
			Count(&featured).Error; err != nil {
			return err
		}
		if featured >= models.MaxFeaturedPosts {
			outcome = models.ToggleLimitExceeded
			return nil
		}
		outcome = models.ToggleAdded
		return tx.Model(&models.Post{}).Where("id = ?", postID).Update("is_featured", true).Error
	})
	if err != nil {
		return "", translate(err, "Post", postID)
	}
	return outcome, nil
}

// TogglePublish flips is_private in a single statement and returns the
// committed value.
func (r *postRepository) TogglePublish(ctx context.Context, postID uint) (bool, error) {
	var isPrivate bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", postID).
			Update("is_private", gorm.Expr("NOT is_private"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		var post models.Post
		if err := tx.Select("id", "is_private").First(&post, postID).Error; err != nil {
			return err
		}
		isPrivate = post.IsPrivate
		return nil
	})
	if err != nil {
		return false, translate(err, "Post", postID)
	}
	return isPrivate, nil
}

func (r *postRepository) Likers(ctx context.Context, postID uint, page models.PageRequest) ([]models.Profile, error) {
	var profiles []models.Profile
	err := paginate(readDB(r.db).WithContext(ctx).
		Joins("JOIN post_likes ON post_likes.profile_id = profiles.id").
		Where("post_likes.post_id = ?", postID).
		Order("post_likes.created_at DESC").Order("profiles.id DESC"), page).
		Find(&profiles).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}

func (r *postRepository) Tags(ctx context.Context, postID uint) ([]models.Tag, error) {
	tags, err := tagsOfPost(readDB(r.db).WithContext(ctx), postID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	return tags, nil
}

func (r *postRepository) Images(ctx context.Context, postID uint) ([]models.PostImage, error) {
	var images []models.PostImage
	err := r.db.WithContext(ctx).Where("post_id = ?", postID).
		Order("position ASC").Order("id ASC").
		Find(&images).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range images {
		images[i].URL = r.mediaURL.url(images[i].ObjectKey)
	}
	return images, nil
}

// AddImages appends images after the existing ones. The post row is locked so
// concurrent uploads cannot push a post past MaxPostImages.
func (r *postRepository) AddImages(ctx context.Context, postID uint, images []models.PostImage) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&post, postID).Error; err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.PostImage{}).Where("post_id = ?", postID).Count(&existing).Error; err != nil {
			return err
		}
		if existing+int64(len(images)) > models.MaxPostImages {
			return models.NewValidationError(fmt.Sprintf("A post can have at most %d images.", models.MaxPostImages))
		}

		var last int
		if err := tx.Model(&models.PostImage{}).Select("COALESCE(MAX(position), -1)").
			Where("post_id = ?", postID).Scan(&last).Error; err != nil {
			return err
		}
		next := last + 1
		for i := range images {
			images[i].PostID = postID
			images[i].Position = next + i
		}
		return tx.Create(&images).Error
	})
	if err != nil {
		return translate(err, "Post", postID)
	}
	for i := range images {
		images[i].URL = r.mediaURL.url(images[i].ObjectKey)
	}
	return nil
}
