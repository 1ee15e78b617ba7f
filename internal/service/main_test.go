package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"inkwell/internal/database"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/policy"
	"inkwell/internal/repository"
	"inkwell/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordingPublisher captures published notifications.
type recordingPublisher struct {
	mu     sync.Mutex
	events map[uint][]notifications.Event
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: map[uint][]notifications.Event{}}
}

func (p *recordingPublisher) PublishProfile(_ context.Context, profileID uint, ev notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[profileID] = append(p.events[profileID], ev)
	return nil
}

func (p *recordingPublisher) For(profileID uint) []notifications.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notifications.Event(nil), p.events[profileID]...)
}

// app wires every service over one in-memory SQLite database.
type app struct {
	db       *gorm.DB
	media    *storage.MemoryStore
	notifier *recordingPublisher

	accounts   *AccountService
	profiles   *ProfileService
	posts      *PostService
	comments   *CommentService
	tags       *TagService
	follows    *FollowService
	engagement *EngagementService
	feed       *FeedService
	search     *SearchService
}

func newApp(t *testing.T) *app {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	media := storage.NewMemoryStore()
	pub := newRecordingPublisher()

	accountRepo := repository.NewAccountRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	postRepo := repository.NewPostRepository(db, media.URL)
	commentRepo := repository.NewCommentRepository(db, media.URL)
	tagRepo := repository.NewTagRepository(db)
	followRepo := repository.NewFollowRepository(db)

	return &app{
		db:         db,
		media:      media,
		notifier:   pub,
		accounts:   NewAccountService(accountRepo, media),
		profiles:   NewProfileService(profileRepo, accountRepo, postRepo, media),
		posts:      NewPostService(postRepo, media),
		comments:   NewCommentService(commentRepo, postRepo, media, pub),
		tags:       NewTagService(tagRepo, postRepo),
		follows:    NewFollowService(followRepo, profileRepo, media),
		engagement: NewEngagementService(postRepo, commentRepo, followRepo, profileRepo, pub),
		feed:       NewFeedService(postRepo),
		search:     NewSearchService(postRepo, profileRepo, media),
	}
}

// register creates an account and returns the requester acting as it.
func (a *app) register(t *testing.T, username string) policy.Requester {
	t.Helper()
	ctx := context.Background()
	account, err := a.accounts.Register(ctx, RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "Str0ng!pass",
	})
	require.NoError(t, err)
	r, err := a.accounts.Resolve(ctx, account.ID)
	require.NoError(t, err)
	return r
}

func (a *app) admin(t *testing.T, username string) policy.Requester {
	t.Helper()
	ctx := context.Background()
	account, err := a.accounts.EnsureAdmin(ctx, RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "Str0ng!pass",
	})
	require.NoError(t, err)
	r, err := a.accounts.Resolve(ctx, account.ID)
	require.NoError(t, err)
	return r
}

func (a *app) post(t *testing.T, r policy.Requester, title string, tags ...string) *models.Post {
	t.Helper()
	post, err := a.posts.Create(context.Background(), r, CreatePostInput{Title: title, Body: "body of " + title, Tags: tags})
	require.NoError(t, err)
	return post
}

// makePrivate flips a freshly created post to private.
func (a *app) makePrivate(t *testing.T, r policy.Requester, post *models.Post) {
	t.Helper()
	res, err := a.engagement.PublishPost(context.Background(), r, post.Slug)
	require.NoError(t, err)
	require.Equal(t, models.ToggleRemoved, res.Outcome)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

func slugsOf(page models.Page[*models.Post]) []string {
	out := make([]string, 0, len(page.Results))
	for _, p := range page.Results {
		out = append(out, p.Slug)
	}
	return out
}

func usernamesOf(page models.Page[models.PublicProfileView]) []string {
	out := make([]string, 0, len(page.Results))
	for _, p := range page.Results {
		out = append(out, p.Username)
	}
	return out
}

// pngBytes is enough of a PNG header for content sniffing.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
