package repository

import (
	"context"
	"fmt"

	"github.com/msomdec/postbook/internal/dbaccess"
	"github.com/msomdec/postbook/internal/domain"
)

// Transactor runs a unit of work on one connection inside one transaction.
type Transactor struct {
	store
}

// NewTransactor creates a new Transactor.
func NewTransactor(factory dbaccess.ConnectionFactory, connString string, errs *domain.ErrorHandler) *Transactor {
	return &Transactor{store: newStore(factory, connString, errs)}
}

// RunInTransaction calls fn with a context carrying the transactional
// connection, so repositories built on the same connection string join it.
// It commits when fn returns nil and rolls back otherwise. An error carrying
// domain errors comes back as those errors; anything else is unexpected.
func (t *Transactor) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) domain.Result[bool] {
	const op = "Transactor.RunInTransaction"
	if e, done := domain.CheckContext(ctx, op); done {
		return domain.Failure[bool](e)
	}

	conn, release, err := dbaccess.Acquire(ctx, t.factory, t.connString)
	if err != nil {
		return domain.Failure[bool](t.errs.Handle(ctx, op, err))
	}
	defer release()

	tx, err := conn.BeginTransaction(ctx)
	if err != nil {
		return domain.Failure[bool](t.errs.Handle(ctx, op, err))
	}

	if err := fn(dbaccess.WithConnection(ctx, t.connString, conn)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			t.errs.Handle(ctx, op, fmt.Errorf("rollback: %w", rbErr))
		}
		if errs, ok := domain.AsErrors(err); ok {
			return domain.Failures[bool](errs)
		}
		return domain.Failure[bool](t.errs.Handle(ctx, op, err))
	}

	if err := tx.Commit(); err != nil {
		return domain.Failure[bool](t.errs.Handle(ctx, op, fmt.Errorf("commit: %w", err)))
	}
	return domain.Success(true)
}
