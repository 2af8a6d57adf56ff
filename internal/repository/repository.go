// Package repository persists the aggregates through dbaccess. Every call
// checks the context first, acquires a connection (reusing the ambient
// transactional one when present) and maps storage outcomes onto Result.
package repository

import (
	"context"
	"time"

	"github.com/msomdec/postbook/internal/dbaccess"
	"github.com/msomdec/postbook/internal/domain"
)

var errUnexpectedScalar = domain.NewError(domain.Unknown, "unexpected scalar")

type store struct {
	factory    dbaccess.ConnectionFactory
	connString string
	errs       *domain.ErrorHandler
}

func newStore(factory dbaccess.ConnectionFactory, connString string, errs *domain.ErrorHandler) store {
	if errs == nil {
		errs = domain.NewErrorHandler(nil)
	}
	return store{factory: factory, connString: connString, errs: errs}
}

func param(name string, value any) dbaccess.Parameter {
	return dbaccess.Parameter{Name: name, Value: value}
}

// execute prepares a command and hands it to fn, closing the command and
// releasing the connection on every path.
func execute[T any](
	ctx context.Context,
	s store,
	op, text string,
	typ dbaccess.CommandType,
	params []dbaccess.Parameter,
	fn func(ctx context.Context, cmd dbaccess.Command) domain.Result[T],
) domain.Result[T] {
	if e, done := domain.CheckContext(ctx, op); done {
		return domain.Failure[T](e)
	}

	conn, release, err := dbaccess.Acquire(ctx, s.factory, s.connString)
	if err != nil {
		return domain.Failure[T](s.errs.Handle(ctx, op, err))
	}
	defer release()

	cmd := conn.CreateCommand()
	defer cmd.Close()
	cmd.SetText(text)
	cmd.SetType(typ)
	for _, p := range params {
		cmd.AddParameter(p.Name, p.Value)
	}
	return fn(ctx, cmd)
}

// nonQuery runs a routine and fails with onZero when no row changed. With
// output set, the count is read from the RowsAffected output parameter.
func nonQuery(ctx context.Context, s store, op, routine string, params []dbaccess.Parameter, output bool, onZero domain.Error) domain.Result[bool] {
	return execute(ctx, s, op, routine, dbaccess.StoredProcedure, params,
		func(ctx context.Context, cmd dbaccess.Command) domain.Result[bool] {
			if output {
				cmd.AddOutputParameter(dbaccess.RowsAffectedOutput, dbaccess.Int64Param)
			}
			n, err := cmd.ExecuteNonQuery(ctx)
			if err != nil {
				return domain.Failure[bool](s.errs.Handle(ctx, op, err))
			}
			if output {
				v, ok := cmd.OutputValue(dbaccess.RowsAffectedOutput)
				if !ok {
					return domain.Failure[bool](errUnexpectedScalar.WithDetails(op))
				}
				if n, err = dbaccess.AsInt64(v); err != nil {
					return domain.Failure[bool](errUnexpectedScalar.WithDetails(op))
				}
			}
			if n == 0 {
				return domain.Failure[bool](onZero)
			}
			return domain.Success(true)
		})
}

// count runs a scalar routine. A NULL or unparsable scalar is an error,
// never zero.
func count(ctx context.Context, s store, op, routine string, params []dbaccess.Parameter) domain.Result[int] {
	return execute(ctx, s, op, routine, dbaccess.StoredProcedure, params,
		func(ctx context.Context, cmd dbaccess.Command) domain.Result[int] {
			v, err := cmd.ExecuteScalar(ctx)
			if err != nil {
				return domain.Failure[int](s.errs.Handle(ctx, op, err))
			}
			if v == nil {
				return domain.Failure[int](errUnexpectedScalar.WithDetails(op))
			}
			n, err := dbaccess.AsInt64(v)
			if err != nil {
				return domain.Failure[int](errUnexpectedScalar.WithDetails(op))
			}
			return domain.Success(int(n))
		})
}

// exists runs a literal EXISTS statement.
func exists(ctx context.Context, s store, op, query string, params []dbaccess.Parameter) domain.Result[bool] {
	return execute(ctx, s, op, query, dbaccess.Text, params,
		func(ctx context.Context, cmd dbaccess.Command) domain.Result[bool] {
			v, err := cmd.ExecuteScalar(ctx)
			if err != nil {
				return domain.Failure[bool](s.errs.Handle(ctx, op, err))
			}
			if v == nil {
				return domain.Failure[bool](errUnexpectedScalar.WithDetails(op))
			}
			b, err := dbaccess.AsBool(v)
			if err != nil {
				return domain.Failure[bool](errUnexpectedScalar.WithDetails(op))
			}
			return domain.Success(b)
		})
}

// query reads every row through restore. The first row that fails to
// restore aborts the call with that row's errors.
func query[T any](ctx context.Context, s store, op, routine string, params []dbaccess.Parameter, restore func(*row) domain.Result[T]) domain.Result[[]T] {
	return execute(ctx, s, op, routine, dbaccess.StoredProcedure, params,
		func(ctx context.Context, cmd dbaccess.Command) domain.Result[[]T] {
			reader, err := cmd.ExecuteReader(ctx)
			if err != nil {
				return domain.Failure[[]T](s.errs.Handle(ctx, op, err))
			}
			defer reader.Close()

			items := []T{}
			for {
				ok, err := reader.Next(ctx)
				if err != nil {
					return domain.Failure[[]T](s.errs.Handle(ctx, op, err))
				}
				if !ok {
					break
				}
				r := &row{reader: reader}
				item := restore(r)
				if r.err != nil {
					return domain.Failure[[]T](s.errs.Handle(ctx, op, r.err))
				}
				if item.IsError() {
					return domain.FailureFrom[[]T](item)
				}
				items = append(items, item.Value())
			}
			return domain.Success(items)
		})
}

// single reads at most one row; no row is NotFound.
func single[T any](ctx context.Context, s store, op, routine string, params []dbaccess.Parameter, restore func(*row) domain.Result[T], notFound domain.Error) domain.Result[T] {
	rows := query(ctx, s, op, routine, params, restore)
	if rows.IsError() {
		return domain.FailureFrom[T](rows)
	}
	if len(rows.Value()) == 0 {
		return domain.Failure[T](notFound)
	}
	return domain.Success(rows.Value()[0])
}

// row reads named columns from the current reader position. The first
// failure sticks and later reads return zero values.
type row struct {
	reader dbaccess.RowReader
	err    error
}

func (r *row) index(col string) (int, bool) {
	if r.err != nil {
		return -1, false
	}
	i, err := r.reader.ColumnIndex(col)
	if err != nil {
		r.err = err
		return -1, false
	}
	return i, !r.reader.IsNull(i)
}

func (r *row) str(col string) string {
	i, ok := r.index(col)
	if !ok {
		return ""
	}
	v, err := r.reader.String(i)
	if err != nil {
		r.err = err
	}
	return v
}

func (r *row) optStr(col string) *string {
	i, ok := r.index(col)
	if !ok {
		return nil
	}
	v, err := r.reader.String(i)
	if err != nil {
		r.err = err
		return nil
	}
	return &v
}

func (r *row) time(col string) time.Time {
	i, ok := r.index(col)
	if !ok {
		return time.Time{}
	}
	v, err := r.reader.Time(i)
	if err != nil {
		r.err = err
	}
	return v
}

func (r *row) boolean(col string) bool {
	i, ok := r.index(col)
	if !ok {
		return false
	}
	v, err := r.reader.Bool(i)
	if err != nil {
		r.err = err
	}
	return v
}
