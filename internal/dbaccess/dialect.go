package dbaccess

import (
	"database/sql"
	"regexp"
)

// ExecMode tells a dialect which kind of execution a statement is bound for.
type ExecMode int

const (
	ModeNonQuery ExecMode = iota
	ModeReader
	ModeScalar
)

// Statement is a command rendered for a specific engine.
type Statement struct {
	Query string
	Args  []any
	// ResultRow marks a non-query whose rows-affected count and output
	// parameters come back as columns of a single result row.
	ResultRow bool
}

// Dialect renders commands for one database engine.
type Dialect interface {
	Name() string
	DriverName() string
	// Configure tunes a freshly opened pool.
	Configure(db *sql.DB) error
	Bind(mode ExecMode, typ CommandType, text string, params []Parameter) (Statement, error)
	// Placeholder renders the n-th (1-based) positional placeholder.
	Placeholder(n int) string
}

var namedParam = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)`)

// paramNames lists the distinct @Name placeholders of text in order of first use.
func paramNames(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range namedParam.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

func lookupParam(params []Parameter, name string) (any, bool) {
	for _, p := range params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}
