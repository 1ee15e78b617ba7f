package repository

import (
	"context"
	"path/filepath"
	"testing"

	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// setupTestDB opens a private in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// setupSharedDB opens a file-backed SQLite database that several connections
// can use at once. Write transactions take the lock up front and wait for
// each other instead of failing with SQLITE_BUSY.
func setupSharedDB(t *testing.T) *gorm.DB {
	dsn := filepath.Join(t.TempDir(), "inkwell.db") + "?_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(8)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// toggleTally runs toggle n times concurrently and counts the outcomes.
func toggleTally(t *testing.T, n int, toggle func() (models.ToggleOutcome, error)) map[models.ToggleOutcome]int {
	t.Helper()
	outcomes := make([]models.ToggleOutcome, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			o, err := toggle()
			outcomes[i] = o
			return err
		})
	}
	require.NoError(t, g.Wait())

	tally := make(map[models.ToggleOutcome]int)
	for _, o := range outcomes {
		tally[o]++
	}
	return tally
}

func createProfile(t *testing.T, db *gorm.DB, username string) *models.Profile {
	t.Helper()
	account := &models.Account{Username: username, Email: username + "@example.com", Password: "x"}
	require.NoError(t, NewAccountRepository(db).Create(context.Background(), account))
	require.NotNil(t, account.Profile)
	return account.Profile
}

func createPost(t *testing.T, db *gorm.DB, owner *models.Profile, title string, tags ...string) *models.Post {
	t.Helper()
	post := &models.Post{ProfileID: owner.ID, Title: title, Body: "body of " + title}
	require.NoError(t, NewPostRepository(db, nil).Create(context.Background(), post, tags))
	return post
}

func tagCounts(t *testing.T, db *gorm.DB) map[string]int64 {
	t.Helper()
	var tags []models.Tag
	require.NoError(t, db.Find(&tags).Error)
	out := make(map[string]int64, len(tags))
	for _, tag := range tags {
		out[tag.Slug] = tag.PostCount
	}
	return out
}

func postSlugs(posts []*models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Slug)
	}
	return out
}

func usernames(profiles []models.Profile) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.Username)
	}
	return out
}
