// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"inkwell/internal/database"
	"inkwell/internal/models"
	"inkwell/internal/policy"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// maxToggleAttempts bounds the compare-and-swap loop of relation toggles.
	maxToggleAttempts = 5
	// maxSlugAttempts bounds suffix probing when allocating a post slug.
	maxSlugAttempts = 20
	// pgUniqueViolation is the SQLSTATE for unique_violation.
	pgUniqueViolation = "23505"
)

// MediaURLFunc turns an object key into a URL clients can fetch.
type MediaURLFunc func(key string) string

func (f MediaURLFunc) url(key string) string {
	if f == nil || key == "" {
		return ""
	}
	return f(key)
}

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// isUniqueConstraintError recognizes unique violations from postgres (by
// SQLSTATE) and from drivers that only report a message.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// escapeLike escapes LIKE wildcards so user input matches literally. Queries
// using it must declare ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// containsPattern is a case-folded substring pattern for LOWER(col) LIKE ?.
func containsPattern(q string) string {
	return "%" + escapeLike(strings.ToLower(q)) + "%"
}

// applyScope restricts a posts query to what the scope may see.
func applyScope(db *gorm.DB, s policy.Scope) *gorm.DB {
	if s.SeesAllPrivate {
		return db
	}
	if s.ViewerProfileID != 0 {
		return db.Where("(posts.is_private = ? OR posts.profile_id = ?)", false, s.ViewerProfileID)
	}
	return db.Where("posts.is_private = ?", false)
}

func paginate(db *gorm.DB, page models.PageRequest) *gorm.DB {
	return db.Limit(page.FetchLimit()).Offset(page.Offset())
}

// translate maps gorm.ErrRecordNotFound to NotFound and anything else that is
// not already an AppError to Internal.
func translate(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}

// toggleRelation flips the presence of row in its join table. keys identify
// the edge. Each attempt runs in its own transaction: a delete that removes
// the edge reports Removed, an insert that creates it reports Added, and when
// neither touches a row a concurrent session won the race and we go again.
func toggleRelation[T any](ctx context.Context, db *gorm.DB, row *T, keys map[string]interface{}) (models.ToggleOutcome, error) {
	for attempt := 0; attempt < maxToggleAttempts; attempt++ {
		var outcome models.ToggleOutcome
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Where(keys).Delete(new(T))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				outcome = models.ToggleRemoved
				return nil
			}

			res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				outcome = models.ToggleAdded
			}
			return nil
		})
		if err != nil {
			return "", models.NewInternalError(err)
		}
		if outcome != "" {
			return outcome, nil
		}
	}
	return "", models.NewConflictError("The request conflicted with a concurrent update. Please retry.")
}
