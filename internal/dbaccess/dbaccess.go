// Package dbaccess is the seam between repositories and a concrete database
// client. Repositories speak only in connections, commands and row readers;
// the production adapter binds those to database/sql and a dialect, and the
// dbaccesstest package binds them to an in-memory fake.
package dbaccess

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CommandType says how a command's text is interpreted.
type CommandType int

const (
	// Text is a literal parameterized statement using @Name placeholders.
	Text CommandType = iota
	// StoredProcedure names a stored routine; parameters bind by name.
	StoredProcedure
)

// ParamType is the declared type of an output parameter.
type ParamType int

const (
	Int64Param ParamType = iota
	StringParam
	BoolParam
	TimeParam
)

// RowsAffectedOutput is the conventional output parameter carrying the
// number of rows a routine changed.
const RowsAffectedOutput = "RowsAffected"

var (
	ErrColumnNotFound = errors.New("dbaccess: column not found")
	ErrNullValue      = errors.New("dbaccess: value is NULL")
	ErrNotOpen        = errors.New("dbaccess: connection is not open")
	ErrUnknownRoutine = errors.New("dbaccess: unknown stored routine")
)

// ConnectionFactory creates connections for a connection string.
type ConnectionFactory interface {
	CreateConnection(ctx context.Context, connString string) (Connection, error)
}

// Connection is a single logical connection. It must be opened before use
// and closed on every exit path.
type Connection interface {
	Open(ctx context.Context) error
	CreateCommand() Command
	BeginTransaction(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction scopes the commands of one connection.
type Transaction interface {
	Commit() error
	Rollback() error
}

// Command is a statement or routine call with bound parameters.
type Command interface {
	SetText(text string)
	SetType(t CommandType)
	AddParameter(name string, value any)
	AddOutputParameter(name string, t ParamType)
	ExecuteNonQuery(ctx context.Context) (int64, error)
	ExecuteReader(ctx context.Context) (RowReader, error)
	ExecuteScalar(ctx context.Context) (any, error)
	OutputValue(name string) (any, bool)
	Close() error
}

// RowReader walks a result set one row at a time.
type RowReader interface {
	Next(ctx context.Context) (bool, error)
	ColumnIndex(name string) (int, error)
	IsNull(i int) bool
	String(i int) (string, error)
	Int64(i int) (int64, error)
	Bool(i int) (bool, error)
	Time(i int) (time.Time, error)
	UUID(i int) (uuid.UUID, error)
	Close() error
}

// Parameter is a named input value.
type Parameter struct {
	Name  string
	Value any
}

// OutputParameter is a named value filled in by execution.
type OutputParameter struct {
	Name string
	Type ParamType
}

type ctxKey struct{ connString string }

// WithConnection returns a context carrying conn for connString so that
// nested repository calls against the same database reuse it, typically
// because it holds an open transaction.
func WithConnection(ctx context.Context, connString string, conn Connection) context.Context {
	return context.WithValue(ctx, ctxKey{connString}, conn)
}

// ConnectionFromContext returns the ambient connection for connString, if any.
func ConnectionFromContext(ctx context.Context, connString string) (Connection, bool) {
	conn, ok := ctx.Value(ctxKey{connString}).(Connection)
	return conn, ok
}

// Acquire returns the ambient connection, or opens a new one. The returned
// release func must always be called; for an ambient connection it is a no-op.
func Acquire(ctx context.Context, factory ConnectionFactory, connString string) (Connection, func(), error) {
	if conn, ok := ConnectionFromContext(ctx, connString); ok {
		return conn, func() {}, nil
	}
	conn, err := factory.CreateConnection(ctx, connString)
	if err != nil {
		return nil, nil, err
	}
	if err := conn.Open(ctx); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, func() { conn.Close() }, nil
}
