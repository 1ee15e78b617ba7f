package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/middleware"

	"gorm.io/gorm"
)

const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan is what ApplySchema does for one configuration.
type SchemaPlan struct {
	Mode    string
	Env     string
	RunSQL  bool
	RunAuto bool
}

// PlanSchema resolves DB_SCHEMA_MODE against the environment. Hybrid runs the
// SQL migrations everywhere and tops them up with AutoMigrate outside
// production. Auto in production needs DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{
		Mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)),
		Env:  cfg.Env,
	}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	prod := cfg.IsProductionLike()

	switch plan.Mode {
	case SchemaModeSQL:
		plan.RunSQL = true
	case SchemaModeHybrid:
		plan.RunSQL, plan.RunAuto = true, !prod
	case SchemaModeAuto:
		if prod && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.RunAuto = true
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.Mode)
	}
	return plan, nil
}

// AutoMigrate creates or updates the table of every persistent model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema brings the database up to date according to the plan for cfg
// and fails if any table the application reads is still missing afterwards.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.RunSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if plan.RunAuto {
		if plan.Mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
			middleware.Logger.Warn("AutoMigrate allowed in a production-like environment; review schema diffs before deploying",
				slog.String("env", plan.Env))
		}
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("mode", plan.Mode), slog.String("env", plan.Env))
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	tables, err := InspectTables(ctx, db, false)
	if err != nil {
		return err
	}
	if missing := missingTables(tables); len(missing) > 0 {
		return fmt.Errorf("schema incomplete after %s apply, missing tables: %s", plan.Mode, strings.Join(missing, ", "))
	}
	return nil
}

// TableStatus reports one application table.
type TableStatus struct {
	Name    string
	Present bool
	// Rows is only filled when counting was requested.
	Rows int64
}

// InspectTables checks every persistent model's table, in registry order.
// With countRows it also counts the rows of each present table.
func InspectTables(ctx context.Context, db *gorm.DB, countRows bool) ([]TableStatus, error) {
	db = db.WithContext(ctx)
	migrator := db.Migrator()

	out := make([]TableStatus, 0, len(PersistentModels()))
	for _, model := range PersistentModels() {
		name, err := tableName(db, model)
		if err != nil {
			return nil, err
		}
		ts := TableStatus{Name: name, Present: migrator.HasTable(model)}
		if ts.Present && countRows {
			if err := db.Model(model).Count(&ts.Rows).Error; err != nil {
				return nil, fmt.Errorf("count %s: %w", name, err)
			}
		}
		out = append(out, ts)
	}
	return out, nil
}

func tableName(db *gorm.DB, model interface{}) (string, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return "", fmt.Errorf("parse %T: %w", model, err)
	}
	return stmt.Schema.Table, nil
}

func missingTables(tables []TableStatus) []string {
	var missing []string
	for _, t := range tables {
		if !t.Present {
			missing = append(missing, t.Name)
		}
	}
	return missing
}

// SchemaStatus is the plan for a configuration plus what the database holds.
type SchemaStatus struct {
	SchemaPlan
	AppliedVersions   []int
	PendingMigrations []Migration
	Tables            []TableStatus
}

// MissingTables names the application tables that do not exist yet.
func (s *SchemaStatus) MissingTables() []string {
	return missingTables(s.Tables)
}

// GetSchemaStatus reports the plan for cfg, the SQL migrations still pending
// and the presence and size of every application table.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan}

	if status.Tables, err = InspectTables(ctx, db, true); err != nil {
		return nil, err
	}
	if !plan.RunSQL {
		return status, nil
	}

	ledger := NewMigrationStore(db)
	applied, err := ledger.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range applied {
		status.AppliedVersions = append(status.AppliedVersions, rec.Version)
	}
	status.PendingMigrations = pendingMigrations(applied, GetMigrations())
	return status, nil
}
