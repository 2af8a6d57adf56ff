package migrations_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/msomdec/postbook/internal/dbaccess"
	"github.com/msomdec/postbook/internal/repository/migrations"
	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// Enable foreign keys for consistency with production.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	return db
}

func TestRunMigrations(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	// First run should apply all migrations.
	if err := migrations.Run(ctx, db, dbaccess.SQLite(), migrations.App); err != nil {
		t.Fatalf("first migration run: %v", err)
	}

	// Verify the profiles table exists by inserting a row.
	_, err := db.ExecContext(ctx,
		`INSERT INTO UserProfiles (UserProfileID, IdentityID, FirstName, LastName, DateOfBirth, Gender, CreatedAt, UpdatedAt)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"p1", "i1", "Alice", "Smith", "1990-01-01", "Female", "2024-01-01", "2024-01-01",
	)
	if err != nil {
		t.Fatalf("insert into UserProfiles: %v", err)
	}

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename LIKE 'app/%'").Scan(&count)
	if err != nil {
		t.Fatalf("count schema_migrations: %v", err)
	}
	if count == 0 {
		t.Fatal("expected at least one migration recorded in schema_migrations")
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	// Run migrations twice; second run should be a no-op.
	if err := migrations.Run(ctx, db, dbaccess.SQLite(), migrations.Identity); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := migrations.Run(ctx, db, dbaccess.SQLite(), migrations.Identity); err != nil {
		t.Fatalf("second run (idempotent): %v", err)
	}

	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		t.Fatalf("count schema_migrations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 migration record, got %d", count)
	}
}

func TestRunBothSetsInOneDatabase(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	for _, set := range []migrations.Set{migrations.App, migrations.Identity} {
		if err := migrations.Run(ctx, db, dbaccess.SQLite(), set); err != nil {
			t.Fatalf("run %s: %v", set, err)
		}
	}

	for _, table := range []string{"Posts", "PostComments", "RefreshTokens", "FileBlobs", "Identities", "Roles", "IdentityRoles"} {
		var n int
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
		if err != nil {
			t.Fatalf("lookup %s: %v", table, err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestFSUnknownDialect(t *testing.T) {
	if _, err := migrations.FS("oracle", migrations.App); err == nil {
		t.Fatal("expected error for unknown dialect")
	}
}

func TestPostgresMigrationsEmbedded(t *testing.T) {
	for _, set := range []migrations.Set{migrations.App, migrations.Identity} {
		if _, err := migrations.FS("postgres", set); err != nil {
			t.Fatalf("postgres %s: %v", set, err)
		}
	}
}

func TestMigratorMigratesEveryTarget(t *testing.T) {
	dir := t.TempDir()
	factory := dbaccess.NewSQLFactory(dbaccess.SQLite())
	m := migrations.NewMigrator(factory,
		migrations.Target{ConnString: filepath.Join(dir, "app.db"), Set: migrations.App},
		migrations.Target{ConnString: filepath.Join(dir, "identity.db"), Set: migrations.Identity},
	)
	defer m.Close()

	ctx := context.Background()
	if err := m.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	db, err := factory.DB(ctx, filepath.Join(dir, "identity.db"))
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM Identities").Scan(&n); err != nil {
		t.Fatalf("query Identities: %v", err)
	}
}
