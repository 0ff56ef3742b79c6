// Package migrate applies versioned SQL migrations to a database/sql
// connection, one transaction per migration.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Latest asks MigrateTo for the highest available version
const Latest = -1

// Migration is one schema version with its forward and reverse SQL
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB is satisfied by both *sql.DB and *sql.Tx
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// MigrationProvider supplies migrations and keeps track of the applied version
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
}

// Step is one migration applied in one direction
type Step struct {
	Migration Migration
	Up        bool
}

// Version is the schema version after the step
func (s Step) Version() int {
	if s.Up {
		return s.Migration.Version
	}
	return s.Migration.Version - 1
}

func (s Step) sql() string {
	if s.Up {
		return s.Migration.Up
	}
	return s.Migration.Down
}

func (s Step) direction() string {
	if s.Up {
		return "up"
	}
	return "down"
}

// Plan lists the steps that move a schema from current to target, in order.
// target Latest means the highest version in migrations.
func Plan(migrations []Migration, current, target int) ([]Step, error) {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	if target == Latest {
		target = current
		if n := len(sorted); n > 0 && sorted[n-1].Version > current {
			target = sorted[n-1].Version
		}
	}
	if target < 0 {
		return nil, fmt.Errorf("invalid target version %d", target)
	}

	var steps []Step
	switch {
	case target > current:
		for _, m := range sorted {
			if m.Version > current && m.Version <= target {
				steps = append(steps, Step{Migration: m, Up: true})
			}
		}
	case target < current:
		for i := len(sorted) - 1; i >= 0; i-- {
			if m := sorted[i]; m.Version > target && m.Version <= current {
				steps = append(steps, Step{Migration: m})
			}
		}
	}

	for _, s := range steps {
		if s.sql() == "" {
			return nil, fmt.Errorf("migration %d has no %s SQL", s.Migration.Version, s.direction())
		}
	}
	return steps, nil
}

// Migrator runs migrations from a provider against one database
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator creates a migrator. A nil logger discards output.
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{db: db, provider: provider, logger: logger}
}

// MigrateUp applies every pending migration
func (m *Migrator) MigrateUp(ctx context.Context) error {
	return m.MigrateTo(ctx, Latest)
}

// MigrateDown reverts migrations until targetVersion, which must be below
// the current version
func (m *Migrator) MigrateDown(ctx context.Context, targetVersion int) error {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return err
	}
	if targetVersion >= current {
		return fmt.Errorf("target version %d must be less than current version %d", targetVersion, current)
	}
	return m.MigrateTo(ctx, targetVersion)
}

// MigrateTo moves the schema up or down to targetVersion
func (m *Migrator) MigrateTo(ctx context.Context, targetVersion int) error {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return err
	}

	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return fmt.Errorf("failed to get migrations: %w", err)
	}

	steps, err := Plan(migrations, current, targetVersion)
	if err != nil {
		return err
	}

	for _, s := range steps {
		if err := m.apply(ctx, s); err != nil {
			return fmt.Errorf("migration %d %s: %w", s.Migration.Version, s.direction(), err)
		}
	}
	return nil
}

// GetCurrentVersion returns the applied version, creating the version table
// on first use
func (m *Migrator) GetCurrentVersion() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	return m.provider.GetCurrentVersion(m.db)
}

// GetPendingMigrations returns the migrations MigrateUp would apply
func (m *Migrator) GetPendingMigrations() ([]Migration, error) {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return nil, err
	}
	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, err
	}

	steps, err := Plan(migrations, current, Latest)
	if err != nil {
		return nil, err
	}
	pending := make([]Migration, len(steps))
	for i, s := range steps {
		pending[i] = s.Migration
	}
	return pending, nil
}

func (m *Migrator) apply(ctx context.Context, s Step) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.sql()); err != nil {
		return err
	}
	if err := m.provider.SetVersion(tx, s.Version()); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	m.logger.Infof("migration %d (%s) %s, schema now at version %d",
		s.Migration.Version, s.Migration.Name, s.direction(), s.Version())
	return nil
}
