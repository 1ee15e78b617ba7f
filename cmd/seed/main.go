// Command seed fills the database with demo data.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/seed"
	"inkwell/internal/storage"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	accounts := flag.Int("accounts", 20, "Number of accounts to create")
	posts := flag.Int("posts", 80, "Number of posts to create")
	comments := flag.Int("comments", 5, "Maximum comments per post")
	tags := flag.Int("tags", 3, "Maximum tags per post")
	clean := flag.Bool("clean", true, "Clear existing data before seeding")
	fakerSeed := flag.Int64("seed", 0, "Faker seed (0 picks a random one)")
	sqlitePath := flag.String("sqlite", "", "Seed a local SQLite file instead of the configured Postgres database")
	flag.Parse()

	ctx := context.Background()
	db, media, err := open(ctx, *sqlitePath)
	if err != nil {
		log.Fatal(err)
	}

	s := seed.NewSeeder(db, media, *fakerSeed)
	if *clean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	sum, err := s.Run(ctx, seed.Options{
		Accounts:        *accounts,
		Posts:           *posts,
		CommentsPerPost: *comments,
		MaxTagsPerPost:  *tags,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d accounts, %d posts, %d comments, %d likes, %d follows",
		sum.Accounts, sum.Posts, sum.Comments, sum.Likes, sum.Follows)
	log.Printf("Every seeded account uses the password %q", seed.DefaultPassword)
}

// open returns the configured Postgres database and object store, or a SQLite
// file with an in-memory object store when sqlitePath is set.
func open(ctx context.Context, sqlitePath string) (*gorm.DB, storage.ObjectStore, error) {
	if sqlitePath != "" {
		db, err := gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", sqlitePath, err)
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return db, storage.NewMemoryStore(), nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	media, err := storage.NewMinioStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect object store: %w", err)
	}
	return db, media, nil
}
