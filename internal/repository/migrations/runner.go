package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/msomdec/postbook/internal/dbaccess"
)

// Run applies all unapplied migrations of set to the database.
// It tracks applied migrations in a schema_migrations table, keyed by set and
// filename so that both sets can share one database.
func Run(ctx context.Context, db *sql.DB, dialect dbaccess.Dialect, set Set) error {
	migrations, err := FS(dialect.Name(), set)
	if err != nil {
		return err
	}

	if err := ensureMigrationsTable(ctx, db); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := getAppliedMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	names, err := listMigrationFiles(migrations)
	if err != nil {
		return fmt.Errorf("list migration files: %w", err)
	}

	for _, filename := range names {
		key := string(set) + "/" + filename
		if applied[key] {
			slog.Debug("migration already applied", "file", key)
			continue
		}

		if err := applyMigration(ctx, db, dialect, migrations, filename, key); err != nil {
			return fmt.Errorf("apply migration %s: %w", key, err)
		}
		slog.Info("migration applied", "file", key, "dialect", dialect.Name())
	}

	return nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func getAppliedMigrations(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT filename FROM schema_migrations ORDER BY filename")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, err
		}
		applied[filename] = true
	}
	return applied, rows.Err()
}

func listMigrationFiles(migrations fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func applyMigration(ctx context.Context, db *sql.DB, dialect dbaccess.Dialect, migrations fs.FS, filename, key string) error {
	content, err := fs.ReadFile(migrations, filename)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("execute sql: %w", err)
	}

	insert := "INSERT INTO schema_migrations (filename) VALUES (" + dialect.Placeholder(1) + ")"
	if _, err := tx.ExecContext(ctx, insert, key); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}
