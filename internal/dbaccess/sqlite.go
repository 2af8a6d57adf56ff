package dbaccess

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

//go:embed routines/sqlite.yaml
var sqliteRoutines []byte

// SQLiteTimeLayout is fixed-width so stored timestamps compare correctly as text.
const SQLiteTimeLayout = "2006-01-02 15:04:05.000000000"

type sqliteDialect struct {
	routines map[string]string
}

// SQLite has no stored routines, so routine names resolve through an
// embedded catalog of named-parameter statements.
func SQLite() Dialect {
	d, err := NewSQLiteDialect(sqliteRoutines)
	if err != nil {
		// The catalog is compiled into the binary.
		panic(err)
	}
	return d
}

// NewSQLiteDialect builds a dialect from a YAML map of routine name to SQL.
func NewSQLiteDialect(catalog []byte) (Dialect, error) {
	routines := make(map[string]string)
	if err := yaml.Unmarshal(catalog, &routines); err != nil {
		return nil, fmt.Errorf("parse routine catalog: %w", err)
	}
	return &sqliteDialect{routines: routines}, nil
}

func (*sqliteDialect) Name() string { return "sqlite" }

func (*sqliteDialect) DriverName() string { return "sqlite" }

func (*sqliteDialect) Configure(db *sql.DB) error {
	ctx := context.Background()
	// WAL mode for better concurrent read performance.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	db.SetMaxOpenConns(1)
	return nil
}

func (*sqliteDialect) Placeholder(int) string { return "?" }

func (d *sqliteDialect) Bind(_ ExecMode, typ CommandType, text string, params []Parameter) (Statement, error) {
	query := text
	if typ == StoredProcedure {
		q, ok := d.routines[text]
		if !ok {
			return Statement{}, fmt.Errorf("%w: %s", ErrUnknownRoutine, text)
		}
		query = q
	}

	names := paramNames(query)
	args := make([]any, 0, len(names))
	for _, name := range names {
		v, ok := lookupParam(params, name)
		if !ok {
			return Statement{}, fmt.Errorf("dbaccess: missing parameter @%s", name)
		}
		args = append(args, sql.Named(name, sqliteValue(v)))
	}
	return Statement{Query: query, Args: args}, nil
}

func sqliteValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(SQLiteTimeLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(SQLiteTimeLayout)
	case fmt.Stringer:
		return t.String()
	}
	return v
}
