// Command migrate inspects and changes the inkwell database schema.
//
//	migrate [-timeout 2m] up | auto | status | down -version N [-yes]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"

	"gorm.io/gorm"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		middleware.Logger.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	timeout := fs.Duration("timeout", 2*time.Minute, "Give up after this long")
	version := fs.Int("version", 0, "Migration version to roll back (down only)")
	yes := fs.Bool("yes", false, "Confirm a rollback in a production-like environment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: migrate [flags] up|auto|status|down")
	}
	cmd := fs.Arg(0)

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cmd {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return err
		}
		return report(ctx, db, cfg)
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return err
		}
		return report(ctx, db, cfg)
	case "status":
		return report(ctx, db, cfg)
	case "down":
		if *version <= 0 {
			return fmt.Errorf("down needs -version")
		}
		if cfg.IsProductionLike() && !*yes {
			return fmt.Errorf("refusing to roll back %06d in %q without -yes", *version, cfg.Env)
		}
		return database.RollbackMigration(ctx, db, *version)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// report logs the schema plan, pending migrations and each inkwell table.
func report(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	log := middleware.Logger

	log.Info("Schema status",
		slog.String("mode", status.Mode),
		slog.String("env", status.Env),
		slog.Bool("run_sql", status.RunSQL),
		slog.Bool("run_auto", status.RunAuto),
		slog.Int("applied", len(status.AppliedVersions)),
		slog.Int("pending", len(status.PendingMigrations)),
	)
	for _, m := range status.PendingMigrations {
		log.Info("Pending migration", slog.String("migration", m.String()))
	}
	for _, t := range status.Tables {
		if !t.Present {
			log.Warn("Table missing", slog.String("table", t.Name))
			continue
		}
		log.Info("Table", slog.String("table", t.Name), slog.Int64("rows", t.Rows))
	}
	return nil
}
