package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/middleware"

	"gorm.io/gorm"
)

// AppliedMigration is one row of the schema_migrations ledger.
type AppliedMigration struct {
	Version   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:255;not null"`
	Checksum  string `gorm:"size:64;not null;default:''"`
	AppliedAt time.Time
}

func (AppliedMigration) TableName() string { return "schema_migrations" }

// MigrationStore reads and writes the ledger of applied SQL migrations.
type MigrationStore interface {
	GetAppliedMigrations(ctx context.Context) ([]AppliedMigration, error)
	ApplyMigration(ctx context.Context, m Migration) error
	RevertMigration(ctx context.Context, m Migration) error
}

type migrationStore struct {
	db *gorm.DB
}

func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &migrationStore{db: db}
}

// GetAppliedMigrations lists the ledger by version. A database that never ran
// a migration has no ledger table and yields an empty list.
func (s *migrationStore) GetAppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	db := s.db.WithContext(ctx)
	if !db.Migrator().HasTable(&AppliedMigration{}) {
		return nil, nil
	}
	var rows []AppliedMigration
	if err := db.Order("version ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return rows, nil
}

// ApplyMigration runs the up script and records it in one transaction.
func (s *migrationStore) ApplyMigration(ctx context.Context, m Migration) error {
	started := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("apply migration %s: %w", m.String(), err)
		}
		rec := AppliedMigration{Version: m.Version, Name: m.Name, Checksum: m.Checksum(), AppliedAt: time.Now().UTC()}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("record migration %s: %w", m.String(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	middleware.Logger.Info("Migration applied",
		slog.String("migration", m.String()),
		slog.Duration("took", time.Since(started)),
	)
	return nil
}

// RevertMigration runs the down script and drops the ledger row together.
func (s *migrationStore) RevertMigration(ctx context.Context, m Migration) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("revert migration %s: %w", m.String(), err)
		}
		res := tx.Where("version = ?", m.Version).Delete(&AppliedMigration{})
		if res.Error != nil {
			return fmt.Errorf("unrecord migration %s: %w", m.String(), res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("migration %s has not been applied", m.String())
		}
		return nil
	})
	if err != nil {
		return err
	}
	middleware.Logger.Info("Migration rolled back", slog.String("migration", m.String()))
	return nil
}

// Checksum fingerprints the up script so edits to applied migrations are caught.
func (m *Migration) Checksum() string {
	sum := sha256.Sum256([]byte(m.UpScript))
	return hex.EncodeToString(sum[:])
}

// RunMigrations applies every embedded migration the ledger does not list.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	return runMigrations(ctx, db, GetMigrations())
}

func runMigrations(ctx context.Context, db *gorm.DB, registered []Migration) error {
	if err := db.WithContext(ctx).AutoMigrate(&AppliedMigration{}); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	ledger := NewMigrationStore(db)
	applied, err := ledger.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if err := checkLedger(applied, registered); err != nil {
		return err
	}

	pending := pendingMigrations(applied, registered)
	if len(pending) == 0 {
		middleware.Logger.Debug("Schema up to date", slog.Int("applied", len(applied)))
		return nil
	}
	for _, m := range pending {
		if err := ledger.ApplyMigration(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// pendingMigrations returns the registered migrations missing from applied,
// in version order.
func pendingMigrations(applied []AppliedMigration, registered []Migration) []Migration {
	done := make(map[int]struct{}, len(applied))
	for _, rec := range applied {
		done[rec.Version] = struct{}{}
	}
	var out []Migration
	for _, m := range registered {
		if _, ok := done[m.Version]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// checkLedger refuses a ledger that names versions this build does not ship,
// or whose recorded checksum no longer matches the shipped script.
func checkLedger(applied []AppliedMigration, registered []Migration) error {
	byVersion := make(map[int]Migration, len(registered))
	for _, m := range registered {
		byVersion[m.Version] = m
	}

	var unknown, changed []string
	for _, rec := range applied {
		m, ok := byVersion[rec.Version]
		switch {
		case !ok:
			unknown = append(unknown, fmt.Sprintf("%06d", rec.Version))
		case rec.Checksum != "" && rec.Checksum != m.Checksum():
			changed = append(changed, m.String())
		}
	}

	var errs []error
	if len(unknown) > 0 {
		errs = append(errs, fmt.Errorf("schema_migrations lists versions unknown to this build: %s", strings.Join(unknown, ", ")))
	}
	if len(changed) > 0 {
		errs = append(errs, fmt.Errorf("applied migrations were edited afterwards: %s", strings.Join(changed, ", ")))
	}
	return errors.Join(errs...)
}

// RollbackMigration reverts one applied migration by version.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}
	middleware.Logger.Info("Rolling back migration", slog.String("migration", m.String()))
	return NewMigrationStore(db).RevertMigration(ctx, *m)
}
