// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/service"
	"inkwell/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	media          storage.ObjectStore
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	auth           *middleware.Authenticator
	limiter        *middleware.RateLimiter
	notifier       *notifications.Notifier

	accountService    *service.AccountService
	profileService    *service.ProfileService
	postService       *service.PostService
	commentService    *service.CommentService
	tagService        *service.TagService
	followService     *service.FollowService
	engagementService *service.EngagementService
	feedService       *service.FeedService
	searchService     *service.SearchService
}

// NewServer connects to the database, Redis and the object store and builds a
// server on top of them.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := cache.InitRedis(cfg.RedisURL)

	media, err := storage.NewMinioStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("object store connection failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, redisClient, media)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; login and signup then answer 503 where rate limits
// apply, other limits fail open and notifications are dropped.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, media storage.ObjectStore) (*Server, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if media == nil {
		return nil, errors.New("object store is required")
	}

	accountRepo := repository.NewAccountRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	postRepo := repository.NewPostRepository(db, media.URL)
	commentRepo := repository.NewCommentRepository(db, media.URL)
	tagRepo := repository.NewTagRepository(db)
	followRepo := repository.NewFollowRepository(db)

	notifier := notifications.NewNotifier(redisClient)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		media:          media,
		promMiddleware: middleware.InitMetrics("inkwell-api"),
		auth:           middleware.NewAuthenticator(cfg.JWTSecret, redisClient),
		limiter:        middleware.NewRateLimiter(redisClient, cfg.RateLimitsEnabled()),
		notifier:       notifier,

		accountService:    service.NewAccountService(accountRepo, media),
		profileService:    service.NewProfileService(profileRepo, accountRepo, postRepo, media),
		postService:       service.NewPostService(postRepo, media),
		commentService:    service.NewCommentService(commentRepo, postRepo, media, notifier),
		tagService:        service.NewTagService(tagRepo, postRepo),
		followService:     service.NewFollowService(followRepo, profileRepo, media),
		engagementService: service.NewEngagementService(postRepo, commentRepo, followRepo, profileRepo, notifier),
		feedService:       service.NewFeedService(postRepo),
		searchService:     service.NewSearchService(postRepo, profileRepo, media),
	}
	return s, nil
}

// Accounts exposes the account service for bootstrap tasks run before serving.
func (s *Server) Accounts() *service.AccountService {
	return s.accountService
}

// NewApp builds the Fiber application with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Inkwell API",
		BodyLimit: s.bodyLimit(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// bodyLimit leaves room for a full batch of images per request.
func (s *Server) bodyLimit() int {
	perFile := s.config.ImageMaxUploadSizeMB
	if perFile <= 0 {
		perFile = 10
	}
	return (models.MaxPostImages*perFile + 1) * 1024 * 1024
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Every API route sees the requester; authorization is decided by the services.
	api := app.Group("/api", s.auth.Optional(), s.ResolveRequester())

	token := api.Group("/token")
	token.Post("/", s.limiter.Limit(middleware.LoginRule), s.Login)
	token.Post("/refresh", s.Refresh)
	token.Post("/verify", s.Verify)
	token.Post("/logout", s.auth.Required(), s.Logout)

	users := api.Group("/users")
	users.Post("/", s.limiter.Limit(middleware.SignupRule), s.Signup)
	users.Get("/", s.ListAccounts)
	users.Get("/me", s.GetMe)
	users.Delete("/:id", s.DeleteAccount)

	profiles := api.Group("/profiles")
	profiles.Get("/", s.ListProfiles)
	// Define specific /:username/:action routes BEFORE generic /:username route
	profiles.Post("/:username/picture", s.UploadProfilePicture)
	profiles.Delete("/:username/picture", s.DeleteProfilePicture)
	profiles.Get("/:username/posts", s.GetProfilePosts)
	profiles.Post("/:username/follow", s.ToggleFollow)
	profiles.Get("/:username/following", s.GetFollowing)
	profiles.Get("/:username/followers", s.GetFollowers)
	profiles.Get("/:username/is-following", s.IsFollowing)
	profiles.Get("/:username", s.GetProfile)
	profiles.Put("/:username", s.UpdateProfile(false))
	profiles.Patch("/:username", s.UpdateProfile(true))
	profiles.Delete("/:username", s.DeleteProfile)

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", s.limiter.Limit(middleware.CreatePostRule), s.CreatePost)
	posts.Get("/favorited", s.GetFavoritedPosts)
	posts.Delete("/delete-all", s.DeleteAllPosts)
	posts.Post("/:slug/like", s.LikePost)
	posts.Get("/:slug/likes", s.GetPostLikes)
	posts.Post("/:slug/favorite", s.FavoritePost)
	posts.Post("/:slug/feature", s.FeaturePost)
	posts.Post("/:slug/publish", s.PublishPost)
	posts.Get("/:slug/tags", s.GetPostTags)
	posts.Get("/:slug/comments", s.GetPostComments)
	posts.Post("/:slug/images", s.UploadPostImages)
	posts.Get("/:slug/download", s.DownloadPostImages)
	posts.Get("/:slug", s.GetPost)
	posts.Put("/:slug", s.UpdatePost(false))
	posts.Patch("/:slug", s.UpdatePost(true))
	posts.Delete("/:slug", s.DeletePost)

	comments := api.Group("/comments")
	comments.Get("/", s.GetComments)
	comments.Post("/", s.limiter.Limit(middleware.CreateCommentRule), s.CreateComment)
	comments.Post("/:id/like", s.LikeComment)
	comments.Get("/:id/likes", s.GetCommentLikes)
	comments.Get("/:id/replies", s.GetCommentReplies)
	comments.Get("/:id", s.GetComment)
	comments.Put("/:id", s.UpdateComment(false))
	comments.Patch("/:id", s.UpdateComment(true))
	comments.Delete("/:id", s.DeleteComment)

	tags := api.Group("/tags")
	tags.Get("/", s.GetTags)
	tags.Post("/", s.CreateTag)
	tags.Get("/:slug/posts", s.GetTagPosts)
	tags.Get("/:slug", s.GetTag)

	api.Get("/feed", s.GetFeed)
	api.Get("/search", s.limiter.Limit(middleware.SearchRule), s.Search)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: without
// it the API runs uncached, so only a configured but failing Redis marks the
// service unready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.NewApp()
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
