// Package seed fills a database with demo accounts, posts and engagement.
// Everything goes through the service layer, so seeded data obeys the same
// validation and counters as data created over the API. Intended for
// development and testing only.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/policy"
	"inkwell/internal/repository"
	"inkwell/internal/service"
	"inkwell/internal/storage"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "Password123!"

// Options sizes a seeding run.
type Options struct {
	Accounts        int
	Posts           int
	CommentsPerPost int
	MaxTagsPerPost  int
}

// Summary counts what a run created.
type Summary struct {
	Accounts int
	Posts    int
	Comments int
	Likes    int
	Follows  int
}

// Seeder creates demo data through the services.
type Seeder struct {
	db    *gorm.DB
	faker *gofakeit.Faker

	accounts   *service.AccountService
	posts      *service.PostService
	comments   *service.CommentService
	engagement *service.EngagementService
}

// NewSeeder builds the services it needs on top of db and media. A zero seed
// picks a random one.
func NewSeeder(db *gorm.DB, media storage.ObjectStore, seed int64) *Seeder {
	accountRepo := repository.NewAccountRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	postRepo := repository.NewPostRepository(db, media.URL)
	commentRepo := repository.NewCommentRepository(db, media.URL)
	followRepo := repository.NewFollowRepository(db)

	return &Seeder{
		db:         db,
		faker:      gofakeit.New(seed),
		accounts:   service.NewAccountService(accountRepo, media),
		posts:      service.NewPostService(postRepo, media),
		comments:   service.NewCommentService(commentRepo, postRepo, media, nil),
		engagement: service.NewEngagementService(postRepo, commentRepo, followRepo, profileRepo, nil),
	}
}

// clearOrder lists tables children first.
var clearOrder = []string{
	"comment_likes",
	"comments",
	"post_tags",
	"tags",
	"profile_favorite_posts",
	"post_likes",
	"post_images",
	"posts",
	"profile_follows",
	"profiles",
	"accounts",
}

// ClearAll deletes every row the seeder can create.
func (s *Seeder) ClearAll(ctx context.Context) error {
	middleware.Logger.Info("Clearing existing data")
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range clearOrder {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Run creates accounts, their posts, comments, likes and follows.
func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary

	users, err := s.SeedAccounts(ctx, opts.Accounts)
	if err != nil {
		return sum, err
	}
	sum.Accounts = len(users)
	if len(users) == 0 {
		return sum, nil
	}

	posts, err := s.SeedPosts(ctx, users, opts.Posts, opts.MaxTagsPerPost)
	if err != nil {
		return sum, err
	}
	sum.Posts = len(posts)

	if sum.Comments, err = s.SeedComments(ctx, users, posts, opts.CommentsPerPost); err != nil {
		return sum, err
	}
	if sum.Likes, err = s.SeedLikes(ctx, users, posts); err != nil {
		return sum, err
	}
	if sum.Follows, err = s.SeedFollows(ctx, users); err != nil {
		return sum, err
	}

	middleware.Logger.Info("Seeding complete",
		slog.Int("accounts", sum.Accounts),
		slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments),
		slog.Int("likes", sum.Likes),
		slog.Int("follows", sum.Follows),
	)
	return sum, nil
}

// SeedAccounts registers n accounts and returns them as requesters.
func (s *Seeder) SeedAccounts(ctx context.Context, n int) ([]policy.Requester, error) {
	users := make([]policy.Requester, 0, n)
	for i := 0; i < n; i++ {
		username := fmt.Sprintf("%s%d", lettersOnly(s.faker.FirstName()), i)
		if len(username) < 3 || len(username) > 30 {
			username = fmt.Sprintf("user%d", i)
		}
		account, err := s.accounts.Register(ctx, service.RegisterInput{
			Username: username,
			Email:    strings.ToLower(username) + "@" + s.faker.DomainName(),
			Password: DefaultPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", username, err)
		}
		r, err := s.accounts.Resolve(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		users = append(users, r)
	}
	return users, nil
}

// SeedPosts spreads n posts over users, each with up to maxTags tags.
func (s *Seeder) SeedPosts(ctx context.Context, users []policy.Requester, n, maxTags int) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		author := users[s.faker.Number(0, len(users)-1)]

		var tags []string
		if maxTags > 0 {
			for j := s.faker.Number(0, maxTags); j > 0; j-- {
				tags = append(tags, s.faker.HipsterWord())
			}
		}

		post, err := s.posts.Create(ctx, author, service.CreatePostInput{
			Title: strings.TrimSuffix(s.faker.Sentence(s.faker.Number(3, 8)), "."),
			Body:  s.faker.Paragraph(2, 4, 12, "\n\n"),
			Tags:  tags,
		})
		if err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// SeedComments adds up to perPost comments to each post. Roughly a third of
// them reply to an earlier comment on the same post.
func (s *Seeder) SeedComments(ctx context.Context, users []policy.Requester, posts []*models.Post, perPost int) (int, error) {
	if perPost <= 0 {
		return 0, nil
	}
	created := 0
	for _, post := range posts {
		var thread []uint
		for j := s.faker.Number(0, perPost); j > 0; j-- {
			in := service.CreateCommentInput{
				PostID: post.ID,
				Body:   s.faker.Sentence(s.faker.Number(4, 16)),
			}
			if len(thread) > 0 && s.faker.Number(0, 2) == 0 {
				parent := thread[s.faker.Number(0, len(thread)-1)]
				in.ParentID = &parent
			}
			comment, err := s.comments.Create(ctx, users[s.faker.Number(0, len(users)-1)], in)
			if err != nil {
				return created, fmt.Errorf("create comment: %w", err)
			}
			thread = append(thread, comment.ID)
			created++
		}
	}
	return created, nil
}

// SeedLikes has every user like a random subset of posts.
func (s *Seeder) SeedLikes(ctx context.Context, users []policy.Requester, posts []*models.Post) (int, error) {
	likes := 0
	for _, u := range users {
		for _, post := range posts {
			if !s.faker.Bool() {
				continue
			}
			res, err := s.engagement.LikePost(ctx, u, post.Slug)
			if err != nil {
				return likes, fmt.Errorf("like %s: %w", post.Slug, err)
			}
			if res.Outcome == models.ToggleAdded {
				likes++
			}
		}
	}
	return likes, nil
}

// SeedFollows has every user follow a random subset of the others.
func (s *Seeder) SeedFollows(ctx context.Context, users []policy.Requester) (int, error) {
	follows := 0
	for _, u := range users {
		for _, target := range users {
			if target.AccountID == u.AccountID || !s.faker.Bool() {
				continue
			}
			res, err := s.engagement.ToggleFollow(ctx, u, target.Username)
			if err != nil {
				return follows, fmt.Errorf("follow %s: %w", target.Username, err)
			}
			if res.Outcome == models.ToggleAdded {
				follows++
			}
		}
	}
	return follows, nil
}

func lettersOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, s)
}
