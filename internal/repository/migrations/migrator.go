package migrations

import (
	"context"
	"fmt"

	"github.com/msomdec/postbook/internal/dbaccess"
)

// Target pairs a connection string with the migration set it receives.
type Target struct {
	ConnString string
	Set        Set
}

// Migrator brings every target database up to date and owns the factory's
// pools. It satisfies domain.Database.
type Migrator struct {
	factory *dbaccess.SQLFactory
	targets []Target
}

// NewMigrator creates a Migrator for the given targets.
func NewMigrator(factory *dbaccess.SQLFactory, targets ...Target) *Migrator {
	return &Migrator{factory: factory, targets: targets}
}

// Migrate runs each target's migrations in order.
func (m *Migrator) Migrate(ctx context.Context) error {
	for _, t := range m.targets {
		db, err := m.factory.DB(ctx, t.ConnString)
		if err != nil {
			return fmt.Errorf("open %s database: %w", t.Set, err)
		}
		if err := Run(ctx, db, m.factory.Dialect(), t.Set); err != nil {
			return fmt.Errorf("migrate %s database: %w", t.Set, err)
		}
	}
	return nil
}

// Close releases every pool the factory opened.
func (m *Migrator) Close() error {
	return m.factory.Close()
}
