package dbaccess

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
)

type postgresDialect struct{}

// Postgres renders stored routines as calls to SQL functions using named
// argument notation. Non-query functions return a single row with a
// RowsAffected column.
func Postgres() Dialect { return postgresDialect{} }

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) DriverName() string { return "postgres" }

func (postgresDialect) Configure(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return nil
}

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (d postgresDialect) Bind(mode ExecMode, typ CommandType, text string, params []Parameter) (Statement, error) {
	if typ == StoredProcedure {
		return d.bindRoutine(mode, text, params)
	}
	return d.bindText(text, params)
}

func (postgresDialect) bindRoutine(mode ExecMode, name string, params []Parameter) (Statement, error) {
	if name == "" {
		return Statement{}, ErrUnknownRoutine
	}
	args := make([]any, 0, len(params))
	named := make([]string, 0, len(params))
	for i, p := range params {
		named = append(named, fmt.Sprintf("%s => $%d", quoteIdent(p.Name), i+1))
		args = append(args, p.Value)
	}
	query := fmt.Sprintf("SELECT * FROM %s(%s)", quoteIdent(name), strings.Join(named, ", "))
	return Statement{Query: query, Args: args, ResultRow: mode == ModeNonQuery}, nil
}

func (postgresDialect) bindText(text string, params []Parameter) (Statement, error) {
	names := paramNames(text)
	index := make(map[string]int, len(names))
	args := make([]any, 0, len(names))
	for i, name := range names {
		v, ok := lookupParam(params, name)
		if !ok {
			return Statement{}, fmt.Errorf("dbaccess: missing parameter @%s", name)
		}
		index[name] = i + 1
		args = append(args, v)
	}
	query := namedParam.ReplaceAllStringFunc(text, func(m string) string {
		return "$" + strconv.Itoa(index[m[1:]])
	})
	return Statement{Query: query, Args: args}, nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
