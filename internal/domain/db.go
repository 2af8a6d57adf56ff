package domain

import "context"

// Database defines lifecycle operations for a backing store. Each dialect
// owns its migration files, so the relational and credential stores can be
// moved between engines independently.
type Database interface {
	Migrate(ctx context.Context) error
	Close() error
}

// Transactor runs fn inside one relational-store transaction. Repositories
// called with the ctx passed to fn join that transaction.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) Result[bool]
}
