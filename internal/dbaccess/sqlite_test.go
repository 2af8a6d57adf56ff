package dbaccess_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/msomdec/postbook/internal/dbaccess"
)

func newSQLiteConn(t *testing.T, dialect dbaccess.Dialect) (*dbaccess.SQLFactory, string) {
	t.Helper()
	factory := dbaccess.NewSQLFactory(dialect)
	t.Cleanup(func() { factory.Close() })
	path := filepath.Join(t.TempDir(), "test.db")

	conn, release, err := dbaccess.Acquire(context.Background(), factory, path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()
	exec(t, conn, "CREATE TABLE Things (ID TEXT PRIMARY KEY, Name TEXT, Count INTEGER NOT NULL, Flag INTEGER NOT NULL, At TEXT NOT NULL)", nil)
	return factory, path
}

func exec(t *testing.T, conn dbaccess.Connection, text string, params map[string]any) int64 {
	t.Helper()
	cmd := conn.CreateCommand()
	defer cmd.Close()
	cmd.SetText(text)
	for k, v := range params {
		cmd.AddParameter(k, v)
	}
	n, err := cmd.ExecuteNonQuery(context.Background())
	if err != nil {
		t.Fatalf("ExecuteNonQuery(%q): %v", text, err)
	}
	return n
}

const insertThing = "INSERT INTO Things (ID, Name, Count, Flag, At) VALUES (@ID, @Name, @Count, @Flag, @At)"

func TestSQLiteRoundTripsTypedValues(t *testing.T) {
	factory, path := newSQLiteConn(t, dbaccess.SQLite())
	ctx := context.Background()
	at := time.Date(2024, 2, 29, 23, 59, 58, 123456789, time.UTC)

	conn, release, err := dbaccess.Acquire(ctx, factory, path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	if n := exec(t, conn, insertThing, map[string]any{"ID": "a", "Name": nil, "Count": 42, "Flag": true, "At": at}); n != 1 {
		t.Fatalf("rows affected = %d, want 1", n)
	}

	cmd := conn.CreateCommand()
	defer cmd.Close()
	cmd.SetText("SELECT ID, Name, Count, Flag, At FROM Things WHERE ID = @ID")
	cmd.AddParameter("ID", "a")
	reader, err := cmd.ExecuteReader(ctx)
	if err != nil {
		t.Fatalf("ExecuteReader: %v", err)
	}
	defer reader.Close()

	ok, err := reader.Next(ctx)
	if err != nil || !ok {
		t.Fatalf("Next = %v, %v", ok, err)
	}

	name, _ := reader.ColumnIndex("name")
	if !reader.IsNull(name) {
		t.Error("Name should be NULL")
	}
	count, _ := reader.ColumnIndex("Count")
	if n, err := reader.Int64(count); err != nil || n != 42 {
		t.Errorf("Count = %d, %v", n, err)
	}
	flag, _ := reader.ColumnIndex("Flag")
	if b, err := reader.Bool(flag); err != nil || !b {
		t.Errorf("Flag = %v, %v", b, err)
	}
	atCol, _ := reader.ColumnIndex("At")
	if got, err := reader.Time(atCol); err != nil || !got.Equal(at) {
		t.Errorf("At = %v, %v; want %v", got, err, at)
	}
}

func TestSQLiteRowsAffectedOutput(t *testing.T) {
	factory, path := newSQLiteConn(t, dbaccess.SQLite())
	ctx := context.Background()
	conn, release, err := dbaccess.Acquire(ctx, factory, path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	exec(t, conn, insertThing, map[string]any{"ID": "a", "Name": "x", "Count": 1, "Flag": false, "At": time.Now()})
	exec(t, conn, insertThing, map[string]any{"ID": "b", "Name": "y", "Count": 1, "Flag": false, "At": time.Now()})

	cmd := conn.CreateCommand()
	cmd.SetText("UPDATE Things SET Count = Count + 1 WHERE Count = @Count")
	cmd.AddParameter("Count", 1)
	cmd.AddOutputParameter(dbaccess.RowsAffectedOutput, dbaccess.Int64Param)
	if _, err := cmd.ExecuteNonQuery(ctx); err != nil {
		t.Fatalf("ExecuteNonQuery: %v", err)
	}
	v, ok := cmd.OutputValue(dbaccess.RowsAffectedOutput)
	if !ok || v != int64(2) {
		t.Fatalf("RowsAffected output = %v (%v), want 2", v, ok)
	}
}

func TestSQLiteTimeComparisonIsChronological(t *testing.T) {
	factory, path := newSQLiteConn(t, dbaccess.SQLite())
	ctx := context.Background()
	conn, release, err := dbaccess.Acquire(ctx, factory, path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	exec(t, conn, insertThing, map[string]any{"ID": "a", "Name": "x", "Count": 1, "Flag": false, "At": base.Add(500 * time.Millisecond)})

	cmd := conn.CreateCommand()
	cmd.SetText("SELECT COUNT(*) FROM Things WHERE At > @Now")
	cmd.AddParameter("Now", base.Add(time.Second))
	v, err := cmd.ExecuteScalar(ctx)
	if err != nil {
		t.Fatalf("ExecuteScalar: %v", err)
	}
	if n, _ := dbaccess.AsInt64(v); n != 0 {
		t.Fatalf("expected no rows after the later instant, got %d", n)
	}
}

func TestSQLiteCatalogRoutines(t *testing.T) {
	dialect, err := dbaccess.NewSQLiteDialect([]byte("AddThing: |\n  " + insertThing + "\n"))
	if err != nil {
		t.Fatalf("NewSQLiteDialect: %v", err)
	}
	factory, path := newSQLiteConn(t, dialect)
	ctx := context.Background()
	conn, release, err := dbaccess.Acquire(ctx, factory, path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	cmd := conn.CreateCommand()
	cmd.SetType(dbaccess.StoredProcedure)
	cmd.SetText("AddThing")
	for k, v := range map[string]any{"ID": "r", "Name": "n", "Count": 3, "Flag": true, "At": time.Now()} {
		cmd.AddParameter(k, v)
	}
	if n, err := cmd.ExecuteNonQuery(ctx); err != nil || n != 1 {
		t.Fatalf("AddThing = %d, %v", n, err)
	}

	missing := conn.CreateCommand()
	missing.SetType(dbaccess.StoredProcedure)
	missing.SetText("NoSuchRoutine")
	if _, err := missing.ExecuteNonQuery(ctx); !errors.Is(err, dbaccess.ErrUnknownRoutine) {
		t.Fatalf("expected ErrUnknownRoutine, got %v", err)
	}

	short := conn.CreateCommand()
	short.SetType(dbaccess.StoredProcedure)
	short.SetText("AddThing")
	short.AddParameter("ID", "s")
	if _, err := short.ExecuteNonQuery(ctx); err == nil {
		t.Fatal("expected missing parameter error")
	}
}

func TestSQLiteEmbeddedCatalogLoads(t *testing.T) {
	d := dbaccess.SQLite()
	for _, name := range []string{"CreatePost", "GetPostsByUserWithPagination", "MarkRefreshTokenUsed", "RevokeRefreshToken", "UpdateUserProfileBasicInformation"} {
		if _, err := d.Bind(dbaccess.ModeNonQuery, dbaccess.StoredProcedure, name, nil); errors.Is(err, dbaccess.ErrUnknownRoutine) {
			t.Errorf("routine %s missing from catalog", name)
		}
	}
}

func TestSQLiteTransactionRollback(t *testing.T) {
	factory, path := newSQLiteConn(t, dbaccess.SQLite())
	ctx := context.Background()
	conn, release, err := dbaccess.Acquire(ctx, factory, path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	tx, err := conn.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	exec(t, conn, insertThing, map[string]any{"ID": "a", "Name": "x", "Count": 1, "Flag": false, "At": time.Now()})
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	cmd := conn.CreateCommand()
	cmd.SetText("SELECT COUNT(*) FROM Things")
	v, err := cmd.ExecuteScalar(ctx)
	if err != nil {
		t.Fatalf("ExecuteScalar: %v", err)
	}
	if n, _ := dbaccess.AsInt64(v); n != 0 {
		t.Fatalf("rolled back insert is visible: %d rows", n)
	}
}

func TestAcquireReusesAmbientConnection(t *testing.T) {
	factory, path := newSQLiteConn(t, dbaccess.SQLite())
	ctx := context.Background()
	conn, release, err := dbaccess.Acquire(ctx, factory, path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ambient := dbaccess.WithConnection(ctx, path, conn)
	got, noop, err := dbaccess.Acquire(ambient, factory, path)
	if err != nil {
		t.Fatalf("Acquire ambient: %v", err)
	}
	noop()
	if got != conn {
		t.Fatal("expected the ambient connection")
	}
	if _, ok := dbaccess.ConnectionFromContext(ambient, "other"); ok {
		t.Fatal("ambient connection leaked to another connection string")
	}
}

func TestConverters(t *testing.T) {
	if _, err := dbaccess.AsInt64(nil); !errors.Is(err, dbaccess.ErrNullValue) {
		t.Errorf("AsInt64(nil) err = %v", err)
	}
	if _, err := dbaccess.AsInt64("12x"); err == nil {
		t.Error("AsInt64 should reject unparsable text")
	}
	if n, err := dbaccess.AsInt64([]byte(" 12 ")); err != nil || n != 12 {
		t.Errorf("AsInt64 = %d, %v", n, err)
	}
	if b, err := dbaccess.AsBool(int64(0)); err != nil || b {
		t.Errorf("AsBool(0) = %v, %v", b, err)
	}
	if tm, err := dbaccess.AsTime("1990-03-15"); err != nil || tm.Year() != 1990 {
		t.Errorf("AsTime = %v, %v", tm, err)
	}
	if _, err := dbaccess.AsTime("yesterday"); err == nil {
		t.Error("AsTime should reject garbage")
	}
}
