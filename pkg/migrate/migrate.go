// Package migrate applies versioned SQL schema migrations to a database/sql handle.
package migrate

import (
	"database/sql"
	"fmt"
	"sort"
)

// Latest as a target version means the newest known migration.
const Latest = -1

// Migration is one numbered schema change with its rollback.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB is satisfied by both *sql.DB and *sql.Tx.
type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// MigrationProvider loads migrations and tracks which version is applied.
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
}

// Step is a single migration applied in one direction.
type Step struct {
	Migration
	Forward bool
}

func (s Step) direction() string {
	if s.Forward {
		return "up"
	}
	return "down"
}

// resulting is the schema version once the step has run.
func (s Step) resulting() int {
	if s.Forward {
		return s.Version
	}
	return s.Version - 1
}

// Migrator moves a database between schema versions.
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	// Logf, when set, is called once per applied step.
	Logf func(format string, args ...any)
}

func NewMigrator(db *sql.DB, provider MigrationProvider) *Migrator {
	return &Migrator{db: db, provider: provider}
}

// MigrateUp applies every pending migration.
func (m *Migrator) MigrateUp() error {
	return m.MigrateTo(Latest)
}

// MigrateDown rolls back to targetVersion, which must be older than the current version.
func (m *Migrator) MigrateDown(targetVersion int) error {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return err
	}
	if targetVersion >= current {
		return fmt.Errorf("target version %d must be less than current version %d", targetVersion, current)
	}
	return m.MigrateTo(targetVersion)
}

// MigrateTo runs the steps returned by Plan.
func (m *Migrator) MigrateTo(targetVersion int) error {
	steps, err := m.Plan(targetVersion)
	if err != nil {
		return err
	}
	for _, s := range steps {
		if err := m.apply(s); err != nil {
			return fmt.Errorf("migration %d %s: %w", s.Version, s.direction(), err)
		}
	}
	return nil
}

// Plan lists the steps needed to reach targetVersion from the current version, in the
// order they would run. An empty plan means the database is already there.
func (m *Migrator) Plan(targetVersion int) ([]Step, error) {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return nil, err
	}
	migrations, err := m.sorted()
	if err != nil {
		return nil, err
	}
	if targetVersion == Latest {
		targetVersion = 0
		if len(migrations) > 0 {
			targetVersion = migrations[len(migrations)-1].Version
		}
	}

	var steps []Step
	if targetVersion >= current {
		for _, mig := range migrations {
			if mig.Version > current && mig.Version <= targetVersion {
				steps = append(steps, Step{Migration: mig, Forward: true})
			}
		}
		return steps, nil
	}
	for i := len(migrations) - 1; i >= 0; i-- {
		mig := migrations[i]
		if mig.Version > targetVersion && mig.Version <= current {
			steps = append(steps, Step{Migration: mig})
		}
	}
	return steps, nil
}

// GetCurrentVersion returns the applied version, creating the tracking table if needed.
func (m *Migrator) GetCurrentVersion() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	v, err := m.provider.GetCurrentVersion(m.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return v, nil
}

// GetPendingMigrations returns migrations newer than the applied version.
func (m *Migrator) GetPendingMigrations() ([]Migration, error) {
	steps, err := m.Plan(Latest)
	if err != nil {
		return nil, err
	}
	pending := make([]Migration, len(steps))
	for i, s := range steps {
		pending[i] = s.Migration
	}
	return pending, nil
}

func (m *Migrator) sorted() ([]Migration, error) {
	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// apply runs one step and records the resulting version in the same transaction.
func (m *Migrator) apply(s Step) error {
	stmt := s.Down
	if s.Forward {
		stmt = s.Up
	}
	if stmt == "" {
		return fmt.Errorf("no %s SQL", s.direction())
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt); err != nil {
		return err
	}
	if err := m.provider.SetVersion(tx, s.resulting()); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if m.Logf != nil {
		m.Logf("applied migration %d (%s) %s", s.Version, s.Name, s.direction())
	}
	return nil
}
