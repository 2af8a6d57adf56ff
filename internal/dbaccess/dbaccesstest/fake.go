// Package dbaccesstest provides a scriptable in-memory dbaccess adapter.
package dbaccesstest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/msomdec/postbook/internal/dbaccess"
)

// Response is the scripted outcome of a command.
type Response struct {
	RowsAffected int64
	Scalar       any
	Columns      []string
	Rows         [][]any
	Outputs      map[string]any
	Err          error
}

// Call records one executed command.
type Call struct {
	Text   string
	Type   dbaccess.CommandType
	Params map[string]any
}

// Factory is a ConnectionFactory whose commands answer from a script keyed
// by command text (routine name or literal statement).
type Factory struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []Call
	created   int
	closed    int
	commits   int
	rollbacks int

	// CreateErr, when set, fails every CreateConnection.
	CreateErr error
}

// NewFactory creates an empty fake.
func NewFactory() *Factory {
	return &Factory{responses: make(map[string]Response)}
}

// On scripts the response for commands with the given text.
func (f *Factory) On(text string, r Response) *Factory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[text] = r
	return f
}

// Calls returns the executed commands in order.
func (f *Factory) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Connections returns how many connections were created.
func (f *Factory) Connections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// Closed returns how many connections were closed.
func (f *Factory) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Commits returns how many transactions were committed.
func (f *Factory) Commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

// Rollbacks returns how many transactions were rolled back.
func (f *Factory) Rollbacks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rollbacks
}

func (f *Factory) CreateConnection(ctx context.Context, _ string) (dbaccess.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.created++
	return &conn{factory: f}, nil
}

func (f *Factory) record(c Call) (Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	r, ok := f.responses[c.Text]
	if !ok {
		return Response{}, fmt.Errorf("dbaccesstest: no response scripted for %q", c.Text)
	}
	return r, r.Err
}

type conn struct {
	factory *Factory
	open    bool
	closed  bool
}

func (c *conn) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.open = true
	return nil
}

func (c *conn) CreateCommand() dbaccess.Command {
	return &command{conn: c, params: make(map[string]any)}
}

func (c *conn) BeginTransaction(context.Context) (dbaccess.Transaction, error) {
	if !c.open {
		return nil, dbaccess.ErrNotOpen
	}
	return &tx{factory: c.factory}, nil
}

func (c *conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.factory.mu.Lock()
	c.factory.closed++
	c.factory.mu.Unlock()
	return nil
}

type tx struct {
	factory *Factory
	done    bool
}

func (t *tx) Commit() error {
	if t.done {
		return fmt.Errorf("dbaccesstest: transaction already finished")
	}
	t.done = true
	t.factory.mu.Lock()
	t.factory.commits++
	t.factory.mu.Unlock()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return fmt.Errorf("dbaccesstest: transaction already finished")
	}
	t.done = true
	t.factory.mu.Lock()
	t.factory.rollbacks++
	t.factory.mu.Unlock()
	return nil
}

type command struct {
	conn    *conn
	text    string
	typ     dbaccess.CommandType
	params  map[string]any
	outputs []dbaccess.OutputParameter
	values  map[string]any
}

func (c *command) SetText(text string) { c.text = text }

func (c *command) SetType(t dbaccess.CommandType) { c.typ = t }

func (c *command) AddParameter(name string, value any) { c.params[name] = value }

func (c *command) AddOutputParameter(name string, t dbaccess.ParamType) {
	c.outputs = append(c.outputs, dbaccess.OutputParameter{Name: name, Type: t})
}

func (c *command) OutputValue(name string) (any, bool) {
	v, ok := c.values[name]
	return v, ok
}

func (c *command) execute(ctx context.Context) (Response, error) {
	if !c.conn.open {
		return Response{}, dbaccess.ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	params := make(map[string]any, len(c.params))
	for k, v := range c.params {
		params[k] = v
	}
	return c.conn.factory.record(Call{Text: c.text, Type: c.typ, Params: params})
}

func (c *command) ExecuteNonQuery(ctx context.Context) (int64, error) {
	r, err := c.execute(ctx)
	if err != nil {
		return 0, err
	}
	c.values = make(map[string]any, len(c.outputs))
	for _, out := range c.outputs {
		if v, ok := r.Outputs[out.Name]; ok {
			c.values[out.Name] = v
		} else if out.Name == dbaccess.RowsAffectedOutput {
			c.values[out.Name] = r.RowsAffected
		}
	}
	return r.RowsAffected, nil
}

func (c *command) ExecuteReader(ctx context.Context) (dbaccess.RowReader, error) {
	r, err := c.execute(ctx)
	if err != nil {
		return nil, err
	}
	return &reader{columns: r.Columns, rows: r.Rows, pos: -1}, nil
}

func (c *command) ExecuteScalar(ctx context.Context) (any, error) {
	r, err := c.execute(ctx)
	if err != nil {
		return nil, err
	}
	return r.Scalar, nil
}

func (c *command) Close() error { return nil }

type reader struct {
	columns []string
	rows    [][]any
	pos     int
}

func (r *reader) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if r.pos+1 >= len(r.rows) {
		return false, nil
	}
	r.pos++
	return true, nil
}

func (r *reader) ColumnIndex(name string) (int, error) {
	for i, c := range r.columns {
		if strings.EqualFold(c, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", dbaccess.ErrColumnNotFound, name)
}

func (r *reader) value(i int) (any, error) {
	if r.pos < 0 || r.pos >= len(r.rows) || i < 0 || i >= len(r.rows[r.pos]) {
		return nil, fmt.Errorf("%w: index %d", dbaccess.ErrColumnNotFound, i)
	}
	v := r.rows[r.pos][i]
	if v == nil {
		return nil, dbaccess.ErrNullValue
	}
	return v, nil
}

func (r *reader) IsNull(i int) bool {
	_, err := r.value(i)
	return err != nil
}

func (r *reader) String(i int) (string, error) {
	v, err := r.value(i)
	if err != nil {
		return "", err
	}
	return dbaccess.AsString(v)
}

func (r *reader) Int64(i int) (int64, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}
	return dbaccess.AsInt64(v)
}

func (r *reader) Bool(i int) (bool, error) {
	v, err := r.value(i)
	if err != nil {
		return false, err
	}
	return dbaccess.AsBool(v)
}

func (r *reader) Time(i int) (time.Time, error) {
	v, err := r.value(i)
	if err != nil {
		return time.Time{}, err
	}
	return dbaccess.AsTime(v)
}

func (r *reader) UUID(i int) (uuid.UUID, error) {
	v, err := r.value(i)
	if err != nil {
		return uuid.Nil, err
	}
	return dbaccess.AsUUID(v)
}

func (r *reader) Close() error { return nil }
