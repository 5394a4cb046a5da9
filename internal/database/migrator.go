package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"workit/internal/middleware"

	"gorm.io/gorm"
)

// migrationLockKey serializes migrations across server replicas that boot
// together. Only PostgreSQL takes the lock.
const migrationLockKey = 727384

// MigrationLog is one row per applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime;index"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// Migrator applies and rolls back versioned SQL migrations, recording each
// in migration_logs within the same transaction as its script.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator uses the embedded migrations unless a set is given.
func NewMigrator(db *gorm.DB, set ...Migration) *Migrator {
	if len(set) == 0 {
		set = migrations
	}
	sorted := append([]Migration(nil), set...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Migrator{db: db, migrations: sorted}
}

// Applied returns applied versions in ascending order. A database without
// a migration_logs table has none.
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	db := m.db.WithContext(ctx)
	if !db.Migrator().HasTable(&MigrationLog{}) {
		return []int{}, nil
	}
	var versions []int
	if err := db.Model(&MigrationLog{}).Order("version ASC").Pluck("version", &versions).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	return versions, nil
}

// Pending returns the known migrations not yet applied, oldest first.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}
	var out []Migration
	for _, mg := range m.migrations {
		if _, ok := done[mg.Version]; !ok {
			out = append(out, mg)
		}
	}
	return out, nil
}

// Up applies every pending migration and returns how many ran. It refuses to
// run when the database records versions this build does not know about.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	db := m.db.WithContext(ctx)
	if err := db.AutoMigrate(&MigrationLog{}); err != nil {
		return 0, fmt.Errorf("failed to ensure migration logs table: %w", err)
	}

	ran := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := lockMigrations(tx); err != nil {
			return err
		}

		applied, err := NewMigrator(tx, m.migrations...).Applied(ctx)
		if err != nil {
			return err
		}
		if err := checkKnownVersions(applied, m.migrations); err != nil {
			return err
		}
		done := make(map[int]struct{}, len(applied))
		for _, v := range applied {
			done[v] = struct{}{}
		}

		for _, mg := range m.migrations {
			if _, ok := done[mg.Version]; ok {
				continue
			}
			middleware.Logger.Info("applying migration", slog.String("migration", mg.String()))
			if err := tx.Exec(mg.UpScript).Error; err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", mg.String(), err)
			}
			if err := tx.Create(&MigrationLog{Version: mg.Version, Name: mg.Name}).Error; err != nil {
				return fmt.Errorf("failed to record migration %s: %w", mg.String(), err)
			}
			ran++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if ran > 0 {
		middleware.Logger.Info("migrations applied", slog.Int("count", ran))
	}
	return ran, nil
}

// Down runs the rollback script of an applied migration and forgets it.
func (m *Migrator) Down(ctx context.Context, version int) error {
	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == version {
			target = &m.migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockMigrations(tx); err != nil {
			return err
		}
		res := tx.Where("version = ?", version).Delete(&MigrationLog{})
		if res.Error != nil {
			return fmt.Errorf("failed to remove migration record %d: %w", version, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("migration %d has not been applied", version)
		}
		middleware.Logger.Info("rolling back migration", slog.String("migration", target.String()))
		if err := tx.Exec(target.DownScript).Error; err != nil {
			return fmt.Errorf("failed to roll back migration %s: %w", target.String(), err)
		}
		return nil
	})
}

func lockMigrations(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockKey).Error; err != nil {
		return fmt.Errorf("failed to lock migrations: %w", err)
	}
	return nil
}

func checkKnownVersions(applied []int, known []Migration) error {
	set := make(map[int]struct{}, len(known))
	for _, mg := range known {
		set[mg.Version] = struct{}{}
	}
	var unknown []string
	for _, v := range applied {
		if _, ok := set[v]; !ok {
			unknown = append(unknown, fmt.Sprintf("%06d", v))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return fmt.Errorf("migration_logs has versions this build does not know: %s (reset the development database to rebuild)",
		strings.Join(unknown, ", "))
}
