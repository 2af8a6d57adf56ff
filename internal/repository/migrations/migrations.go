// Package migrations applies the embedded, dialect-specific schema.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed sql
var files embed.FS

// Set names a group of migrations that belong to one database.
type Set string

const (
	// App holds posts, comments, profiles, refresh tokens and file blobs.
	App Set = "app"
	// Identity holds credentials and roles.
	Identity Set = "identity"
)

// FS returns the migration files for a dialect and set.
func FS(dialect string, set Set) (fs.FS, error) {
	sub, err := fs.Sub(files, "sql/"+dialect+"/"+string(set))
	if err != nil {
		return nil, fmt.Errorf("migrations for %s/%s: %w", dialect, set, err)
	}
	if _, err := fs.Stat(sub, "."); err != nil {
		return nil, fmt.Errorf("migrations for %s/%s: %w", dialect, set, err)
	}
	return sub, nil
}
