package dbaccess

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Opener opens a pool for a connection string.
type Opener func(driverName, connString string) (*sql.DB, error)

// SQLFactory is the production ConnectionFactory over database/sql. It keeps
// one pool per connection string; pooling policy is left to the dialect.
type SQLFactory struct {
	dialect Dialect
	open    Opener

	mu    sync.Mutex
	pools map[string]*sql.DB
}

// SQLOption configures an SQLFactory.
type SQLOption func(*SQLFactory)

// WithOpener replaces sql.Open, e.g. to hand the factory a mock pool.
func WithOpener(open Opener) SQLOption {
	return func(f *SQLFactory) { f.open = open }
}

// NewSQLFactory creates a factory for the given dialect.
func NewSQLFactory(dialect Dialect, opts ...SQLOption) *SQLFactory {
	f := &SQLFactory{
		dialect: dialect,
		open:    sql.Open,
		pools:   make(map[string]*sql.DB),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Dialect returns the dialect commands are rendered with.
func (f *SQLFactory) Dialect() Dialect { return f.dialect }

// DB returns the pool for connString, opening it on first use.
func (f *SQLFactory) DB(ctx context.Context, connString string) (*sql.DB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if db, ok := f.pools[connString]; ok {
		return db, nil
	}

	db, err := f.open(f.dialect.DriverName(), connString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := f.dialect.Configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	f.pools[connString] = db
	return db, nil
}

func (f *SQLFactory) CreateConnection(ctx context.Context, connString string) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := f.DB(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &sqlConnection{db: db, dialect: f.dialect}, nil
}

// Close closes every pool the factory opened.
func (f *SQLFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for key, db := range f.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.pools, key)
	}
	return firstErr
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type sqlConnection struct {
	db      *sql.DB
	dialect Dialect
	conn    *sql.Conn
	tx      *sql.Tx
}

func (c *sqlConnection) Open(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	c.conn = conn
	return nil
}

func (c *sqlConnection) CreateCommand() Command {
	return &sqlCommand{conn: c}
}

func (c *sqlConnection) BeginTransaction(ctx context.Context) (Transaction, error) {
	if c.conn == nil {
		return nil, ErrNotOpen
	}
	if c.tx != nil {
		return nil, fmt.Errorf("dbaccess: transaction already in progress")
	}
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	c.tx = tx
	return &sqlTransaction{conn: c, tx: tx}, nil
}

func (c *sqlConnection) Close() error {
	if c.conn == nil {
		return nil
	}
	if c.tx != nil {
		c.tx.Rollback()
		c.tx = nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *sqlConnection) executor() (executor, error) {
	if c.conn == nil {
		return nil, ErrNotOpen
	}
	if c.tx != nil {
		return c.tx, nil
	}
	return c.conn, nil
}

type sqlTransaction struct {
	conn *sqlConnection
	tx   *sql.Tx
}

func (t *sqlTransaction) Commit() error {
	t.conn.tx = nil
	return t.tx.Commit()
}

func (t *sqlTransaction) Rollback() error {
	t.conn.tx = nil
	return t.tx.Rollback()
}

type sqlCommand struct {
	conn    *sqlConnection
	text    string
	typ     CommandType
	params  []Parameter
	outputs []OutputParameter
	values  map[string]any
	rows    *sql.Rows
}

func (c *sqlCommand) SetText(text string) { c.text = text }

func (c *sqlCommand) SetType(t CommandType) { c.typ = t }

func (c *sqlCommand) AddParameter(name string, value any) {
	c.params = append(c.params, Parameter{Name: name, Value: value})
}

func (c *sqlCommand) AddOutputParameter(name string, t ParamType) {
	c.outputs = append(c.outputs, OutputParameter{Name: name, Type: t})
}

func (c *sqlCommand) OutputValue(name string) (any, bool) {
	v, ok := c.values[name]
	return v, ok
}

func (c *sqlCommand) bind(mode ExecMode) (executor, Statement, error) {
	exec, err := c.conn.executor()
	if err != nil {
		return nil, Statement{}, err
	}
	stmt, err := c.conn.dialect.Bind(mode, c.typ, c.text, c.params)
	if err != nil {
		return nil, Statement{}, err
	}
	return exec, stmt, nil
}

func (c *sqlCommand) ExecuteNonQuery(ctx context.Context) (int64, error) {
	exec, stmt, err := c.bind(ModeNonQuery)
	if err != nil {
		return 0, err
	}
	c.values = make(map[string]any, len(c.outputs))

	if stmt.ResultRow {
		return c.nonQueryFromRow(ctx, exec, stmt)
	}

	res, err := exec.ExecContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("execute %s: %w", c.describe(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	for _, out := range c.outputs {
		if out.Name == RowsAffectedOutput {
			c.values[out.Name] = n
		}
	}
	return n, nil
}

func (c *sqlCommand) nonQueryFromRow(ctx context.Context, exec executor, stmt Statement) (int64, error) {
	rows, err := exec.QueryContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("execute %s: %w", c.describe(), err)
	}
	defer rows.Close()

	reader, err := newSQLRowReader(rows)
	if err != nil {
		return 0, err
	}
	ok, err := reader.Next(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	var affected int64
	if i, err := reader.ColumnIndex(RowsAffectedOutput); err == nil {
		affected, err = reader.Int64(i)
		if err != nil {
			return 0, err
		}
	}
	for _, out := range c.outputs {
		i, err := reader.ColumnIndex(out.Name)
		if err != nil {
			continue
		}
		v, err := reader.typed(i, out.Type)
		if err != nil {
			return 0, err
		}
		c.values[out.Name] = v
	}
	return affected, rows.Err()
}

func (c *sqlCommand) ExecuteReader(ctx context.Context) (RowReader, error) {
	exec, stmt, err := c.bind(ModeReader)
	if err != nil {
		return nil, err
	}
	rows, err := exec.QueryContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.describe(), err)
	}
	reader, err := newSQLRowReader(rows)
	if err != nil {
		rows.Close()
		return nil, err
	}
	c.rows = rows
	return reader, nil
}

func (c *sqlCommand) ExecuteScalar(ctx context.Context) (any, error) {
	exec, stmt, err := c.bind(ModeScalar)
	if err != nil {
		return nil, err
	}
	rows, err := exec.QueryContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.describe(), err)
	}
	defer rows.Close()

	reader, err := newSQLRowReader(rows)
	if err != nil {
		return nil, err
	}
	ok, err := reader.Next(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return reader.current[0], nil
}

func (c *sqlCommand) Close() error {
	if c.rows != nil {
		err := c.rows.Close()
		c.rows = nil
		return err
	}
	return nil
}

func (c *sqlCommand) describe() string {
	if c.typ == StoredProcedure {
		return c.text
	}
	return "statement"
}

type sqlRowReader struct {
	rows    *sql.Rows
	width   int
	columns map[string]int
	current []any
}

func newSQLRowReader(rows *sql.Rows) (*sqlRowReader, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	index := make(map[string]int, len(cols))
	for i, name := range cols {
		key := strings.ToLower(name)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	return &sqlRowReader{rows: rows, width: len(cols), columns: index}, nil
}

func (r *sqlRowReader) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !r.rows.Next() {
		return false, r.rows.Err()
	}
	values := make([]any, r.width)
	ptrs := make([]any, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return false, fmt.Errorf("scan row: %w", err)
	}
	r.current = values
	return true, nil
}

func (r *sqlRowReader) ColumnIndex(name string) (int, error) {
	i, ok := r.columns[strings.ToLower(name)]
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return i, nil
}

func (r *sqlRowReader) value(i int) (any, error) {
	if i < 0 || i >= len(r.current) {
		return nil, fmt.Errorf("%w: index %d", ErrColumnNotFound, i)
	}
	if r.current[i] == nil {
		return nil, ErrNullValue
	}
	return r.current[i], nil
}

func (r *sqlRowReader) IsNull(i int) bool {
	return i < 0 || i >= len(r.current) || r.current[i] == nil
}

func (r *sqlRowReader) String(i int) (string, error) {
	v, err := r.value(i)
	if err != nil {
		return "", err
	}
	return AsString(v)
}

func (r *sqlRowReader) Int64(i int) (int64, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}
	return AsInt64(v)
}

func (r *sqlRowReader) Bool(i int) (bool, error) {
	v, err := r.value(i)
	if err != nil {
		return false, err
	}
	return AsBool(v)
}

func (r *sqlRowReader) Time(i int) (time.Time, error) {
	v, err := r.value(i)
	if err != nil {
		return time.Time{}, err
	}
	return AsTime(v)
}

func (r *sqlRowReader) UUID(i int) (uuid.UUID, error) {
	v, err := r.value(i)
	if err != nil {
		return uuid.Nil, err
	}
	return AsUUID(v)
}

func (r *sqlRowReader) typed(i int, t ParamType) (any, error) {
	switch t {
	case Int64Param:
		return r.Int64(i)
	case BoolParam:
		return r.Bool(i)
	case TimeParam:
		return r.Time(i)
	default:
		return r.String(i)
	}
}

func (r *sqlRowReader) Close() error {
	return r.rows.Close()
}

// AsString converts a driver value to a string.
func AsString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case fmt.Stringer:
		return t.String(), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	}
	return "", fmt.Errorf("dbaccess: cannot read %T as string", v)
}

// AsInt64 converts a driver value to an int64. Text that does not parse is
// an error, never zero.
func AsInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(t)), 10, 64)
	case string:
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	case nil:
		return 0, ErrNullValue
	}
	return 0, fmt.Errorf("dbaccess: cannot read %T as int64", v)
}

// AsBool converts a driver value to a bool; SQLite stores booleans as 0/1.
func AsBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case []byte:
		return strconv.ParseBool(string(t))
	case string:
		return strconv.ParseBool(t)
	}
	return false, fmt.Errorf("dbaccess: cannot read %T as bool", v)
}

var timeLayouts = []string{
	SQLiteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// AsTime converts a driver value to a UTC time.
func AsTime(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, fmt.Errorf("dbaccess: cannot read %T as time", v)
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("dbaccess: unrecognised time %q", s)
}

// AsUUID converts a driver value to a UUID.
func AsUUID(v any) (uuid.UUID, error) {
	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case []byte:
		if len(t) == 16 {
			return uuid.FromBytes(t)
		}
		return uuid.ParseBytes(t)
	case string:
		return uuid.Parse(t)
	}
	return uuid.Nil, fmt.Errorf("dbaccess: cannot read %T as uuid", v)
}
