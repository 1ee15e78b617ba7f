package repository

import (
	"context"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository defines persistence operations for tags.
type TagRepository interface {
	List(ctx context.Context, page models.PageRequest) ([]models.Tag, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tag, error)
	Create(ctx context.Context, name string) (*models.Tag, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository returns a new TagRepository implementation.
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

// NormalizeTag returns the display name and slug of a user supplied tag name.
// An empty slug means the name carries nothing usable.
func NormalizeTag(name string) (display string, tagSlug string) {
	trimmed := strings.Join(strings.Fields(name), " ")
	return cases.Title(language.Und).String(trimmed), slug.Make(trimmed)
}

func (r *tagRepository) List(ctx context.Context, page models.PageRequest) ([]models.Tag, error) {
	var tags []models.Tag
	err := paginate(readDB(r.db).WithContext(ctx).Order("name ASC, id ASC"), page).
		Find(&tags).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}

func (r *tagRepository) GetBySlug(ctx context.Context, tagSlug string) (*models.Tag, error) {
	var tag models.Tag
	key := cache.TagKey(tagSlug)
	err := cache.Aside(ctx, key, &tag, cache.TagTTL, func() error {
		return translate(
			readDB(r.db).WithContext(ctx).Where("slug = ?", tagSlug).First(&tag).Error,
			"Tag", tagSlug,
		)
	})
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) Create(ctx context.Context, name string) (*models.Tag, error) {
	display, tagSlug := NormalizeTag(name)
	if tagSlug == "" {
		return nil, models.NewValidationError("Tag name must contain letters or digits.")
	}
	tag := &models.Tag{Name: display, Slug: tagSlug}
	if err := r.db.WithContext(ctx).Create(tag).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, models.NewValidationError("Tag with this name already exists.")
		}
		return nil, models.NewInternalError(err)
	}
	return tag, nil
}

// resolveTags maps names to tag rows, creating the missing ones. Names are
// deduplicated by slug; names without a usable slug are rejected.
func resolveTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}
	slugs := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		display, tagSlug := NormalizeTag(name)
		if tagSlug == "" {
			return nil, models.NewValidationError("Tag name must contain letters or digits.")
		}
		if _, ok := seen[tagSlug]; ok {
			continue
		}
		seen[tagSlug] = struct{}{}
		slugs = append(slugs, tagSlug)

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Tag{Name: display, Slug: tagSlug}).Error; err != nil {
			return nil, err
		}
	}

	var tags []models.Tag
	if err := tx.Where("slug IN ?", slugs).Order("id ASC").Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(slugs) {
		// The name is taken by a tag with a different slug.
		return nil, models.NewValidationError("Tag with this name already exists.")
	}
	return tags, nil
}

// attachTags links tags to a post and bumps their counters.
func attachTags(tx *gorm.DB, postID uint, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	links := make([]models.PostTag, 0, len(tags))
	ids := make([]uint, 0, len(tags))
	for _, t := range tags {
		links = append(links, models.PostTag{PostID: postID, TagID: t.ID})
		ids = append(ids, t.ID)
	}
	if err := tx.Create(&links).Error; err != nil {
		return err
	}
	return tx.Model(&models.Tag{}).Where("id IN ?", ids).
		UpdateColumn("post_count", gorm.Expr("post_count + ?", 1)).Error
}

// detachTags unlinks tags from a post and lowers their counters.
func detachTags(tx *gorm.DB, postID uint, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	ids := tagIDs(tags)
	if err := tx.Where("post_id = ? AND tag_id IN ?", postID, ids).Delete(&models.PostTag{}).Error; err != nil {
		return err
	}
	return tx.Model(&models.Tag{}).Where("id IN ?", ids).
		UpdateColumn("post_count", gorm.Expr("post_count - ?", 1)).Error
}

// collectTags deletes the touched tags that no longer label any post.
func collectTags(tx *gorm.DB, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	res := tx.Where("id IN ? AND post_count <= ?", tagIDs(tags), 0).Delete(&models.Tag{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		observability.TagsCollected.Add(float64(res.RowsAffected))
	}
	return nil
}

// tagsOfPost returns the tags attached to a post, ordered by name.
func tagsOfPost(db *gorm.DB, postID uint) ([]models.Tag, error) {
	var tags []models.Tag
	err := db.Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Where("post_tags.post_id = ?", postID).
		Order("tags.name ASC").
		Find(&tags).Error
	return tags, err
}

// diffTags returns the tags only in current (removed) and only in next (added).
func diffTags(current, next []models.Tag) (removed, added []models.Tag) {
	in := func(set []models.Tag, id uint) bool {
		for _, t := range set {
			if t.ID == id {
				return true
			}
		}
		return false
	}
	for _, t := range current {
		if !in(next, t.ID) {
			removed = append(removed, t)
		}
	}
	for _, t := range next {
		if !in(current, t.ID) {
			added = append(added, t)
		}
	}
	return removed, added
}

func tagIDs(tags []models.Tag) []uint {
	ids := make([]uint, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids
}

func invalidateTags(ctx context.Context, tags ...[]models.Tag) {
	for _, set := range tags {
		for _, t := range set {
			cache.InvalidateTag(ctx, t.Slug)
		}
	}
}
