// pkg/bayesdb/db_test.go
package bayesdb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

type stubMetamodel struct {
	name       string
	registered int
	err        error
}

func (m *stubMetamodel) Name() string { return m.name }

func (m *stubMetamodel) Register(ctx context.Context, db *DB) error {
	m.registered++
	if m.err != nil {
		return m.err
	}
	_, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS bayesdb_stub (x INTEGER)`)
	return err
}

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_Memory(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	if !db.IsMemory() {
		t.Error("expected in-memory database")
	}

	// Separate statements must see the same database.
	if _, err := db.Exec(ctx, "CREATE TABLE t (x INTEGER)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	res, err := db.Exec(ctx, "INSERT INTO t VALUES (1), (2)")
	if err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}
	if res.RowsAffected != 2 {
		t.Errorf("expected 2 rows affected, got %d", res.RowsAffected)
	}

	res, err = db.Exec(ctx, "SELECT x FROM t ORDER BY x")
	if err != nil {
		t.Fatalf("SELECT failed: %v", err)
	}
	if !reflect.DeepEqual(res.Columns, []string{"x"}) {
		t.Errorf("unexpected columns: %v", res.Columns)
	}
	if len(res.Rows) != 2 || res.Rows[0][0] != int64(1) || res.Rows[1][0] != int64(2) {
		t.Errorf("unexpected rows: %v", res.Rows)
	}

	if _, err := os.Stat(MemoryPath); err == nil {
		t.Error("in-memory database must not create a file")
	}
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bdb")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := db.Exec(context.Background(), "CREATE TABLE t (x)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected database file to exist: %v", err)
	}

	// Reopen and check the table survived.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	tables, err := db.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables failed: %v", err)
	}
	if !reflect.DeepEqual(tables, []string{"t"}) {
		t.Errorf("expected [t], got %v", tables)
	}
}

func TestOpen_Locked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bdb")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	_, err = Open(path)
	if !errors.Is(err, ErrDatabaseLocked) {
		t.Errorf("expected ErrDatabaseLocked, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), path+".lock") {
		t.Errorf("expected lock file path in %q", err)
	}

	db.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("Open after Close failed: %v", err)
	}
	db2.Close()
}

func TestClose_Twice(t *testing.T) {
	db, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := db.Close(); err != ErrDatabaseClosed {
		t.Errorf("expected ErrDatabaseClosed, got %v", err)
	}
	if _, err := db.Exec(context.Background(), "SELECT 1"); err != ErrDatabaseClosed {
		t.Errorf("expected ErrDatabaseClosed from Exec, got %v", err)
	}
}

func TestRegisterMetamodel(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	m := &stubMetamodel{name: "stub"}
	if err := db.RegisterMetamodel(ctx, m); err != nil {
		t.Fatalf("RegisterMetamodel failed: %v", err)
	}
	if m.registered != 1 {
		t.Errorf("expected Register to be called once, got %d", m.registered)
	}

	got, err := db.Metamodel("stub")
	if err != nil {
		t.Fatalf("Metamodel failed: %v", err)
	}
	if got != m {
		t.Error("Metamodel returned a different value")
	}

	if err := db.RegisterMetamodel(ctx, &stubMetamodel{name: "stub"}); !errors.Is(err, ErrMetamodelExists) {
		t.Errorf("expected ErrMetamodelExists, got %v", err)
	}

	if _, err := db.Metamodel("missing"); !errors.Is(err, ErrNoSuchMetamodel) {
		t.Errorf("expected ErrNoSuchMetamodel, got %v", err)
	}

	// Bookkeeping tables are hidden from Tables.
	tables, err := db.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables failed: %v", err)
	}
	if len(tables) != 0 {
		t.Errorf("expected no user tables, got %v", tables)
	}
}

func TestRegisterMetamodel_Error(t *testing.T) {
	db := openMemory(t)

	boom := errors.New("boom")
	err := db.RegisterMetamodel(context.Background(), &stubMetamodel{name: "bad", err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped boom, got %v", err)
	}
	if names := db.Metamodels(); len(names) != 0 {
		t.Errorf("failed registration must not be recorded, got %v", names)
	}
}

func TestMetamodels_Sorted(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := db.RegisterMetamodel(ctx, &stubMetamodel{name: name}); err != nil {
			t.Fatalf("RegisterMetamodel(%s) failed: %v", name, err)
		}
	}

	want := []string{"alpha", "mid", "zeta"}
	if got := db.Metamodels(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSchemaAndColumns(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	if _, err := db.Exec(ctx, "CREATE TABLE people (name TEXT, age INTEGER)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}

	stmt, err := db.Schema(ctx, "people")
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}
	if stmt != "CREATE TABLE people (name TEXT, age INTEGER);" {
		t.Errorf("unexpected schema: %q", stmt)
	}

	cols, err := db.Columns(ctx, "people")
	if err != nil {
		t.Fatalf("Columns failed: %v", err)
	}
	if !reflect.DeepEqual(cols, []string{"name", "age"}) {
		t.Errorf("unexpected columns: %v", cols)
	}

	if _, err := db.Schema(ctx, "nope"); !errors.Is(err, ErrNoSuchTable) {
		t.Errorf("expected ErrNoSuchTable, got %v", err)
	}
	if _, err := db.Columns(ctx, "nope"); !errors.Is(err, ErrNoSuchTable) {
		t.Errorf("expected ErrNoSuchTable, got %v", err)
	}
}

func TestTableNamesIgnoreCase(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	if _, err := db.Exec(ctx, "CREATE TABLE people (name TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	db.RegisterMetamodel(ctx, &stubMetamodel{name: "stub"})

	ok, err := db.TableExists(ctx, "PEOPLE")
	if err != nil || !ok {
		t.Fatalf("expected PEOPLE to exist, got %v, %v", ok, err)
	}
	if _, err := db.Schema(ctx, "People"); err != nil {
		t.Errorf("Schema failed: %v", err)
	}
	if _, err := db.Columns(ctx, "PEOPLE"); err != nil {
		t.Errorf("Columns failed: %v", err)
	}

	g, err := db.CreateGenerator(ctx, "PEOPLE", "stub")
	if err != nil {
		t.Fatalf("CreateGenerator failed: %v", err)
	}
	got, err := db.Generator(ctx, "people")
	if err != nil {
		t.Fatalf("Generator failed: %v", err)
	}
	if got.ID != g.ID {
		t.Errorf("expected generator %s, got %s", g.ID, got.ID)
	}
	if _, err := db.CreateGenerator(ctx, "people", "stub"); err == nil {
		t.Error("expected error creating a generator that differs only in case")
	}
}

func TestWithTx_Rollback(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	db.Exec(ctx, "CREATE TABLE t (x INTEGER)")

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO t VALUES (1)"); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("expected boom, got %v", err)
	}

	res, err := db.Exec(ctx, "SELECT COUNT(*) FROM t")
	if err != nil {
		t.Fatalf("SELECT failed: %v", err)
	}
	if res.Rows[0][0] != int64(0) {
		t.Errorf("expected rollback to leave table empty, got %v", res.Rows[0][0])
	}
}

func TestGenerator(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	db.Exec(ctx, "CREATE TABLE t (x INTEGER)")
	db.RegisterMetamodel(ctx, &stubMetamodel{name: "stub"})

	if _, err := db.Generator(ctx, "t"); !errors.Is(err, ErrNoSuchGenerator) {
		t.Errorf("expected ErrNoSuchGenerator, got %v", err)
	}

	g, err := db.CreateGenerator(ctx, "t", "stub")
	if err != nil {
		t.Fatalf("CreateGenerator failed: %v", err)
	}
	if g.ID == "" {
		t.Error("expected generator id")
	}

	got, err := db.Generator(ctx, "t")
	if err != nil {
		t.Fatalf("Generator failed: %v", err)
	}
	if got.ID != g.ID || got.Metamodel != "stub" || !got.Created.Equal(g.Created) {
		t.Errorf("generator mismatch: got %+v, want %+v", got, g)
	}

	if _, err := db.CreateGenerator(ctx, "t", "stub"); err == nil {
		t.Error("expected error creating a second generator for the same table")
	}
	if _, err := db.CreateGenerator(ctx, "missing", "stub"); !errors.Is(err, ErrNoSuchTable) {
		t.Errorf("expected ErrNoSuchTable, got %v", err)
	}
	if _, err := db.CreateGenerator(ctx, "t", "nope"); !errors.Is(err, ErrNoSuchMetamodel) {
		t.Errorf("expected ErrNoSuchMetamodel, got %v", err)
	}
}

func TestReturnsRows(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT 1", true},
		{"  select * from t", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"PRAGMA table_info(t)", true},
		{"(SELECT 1)", true},
		{"VALUES (1)", true},
		{"-- leading comment\nSELECT 1", true},
		{"/* block */ select 1", true},
		{"-- only a comment", false},
		{"INSERT INTO t VALUES (1)", false},
		{"CREATE TABLE t (x)", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := returnsRows(tt.query); got != tt.want {
			t.Errorf("returnsRows(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
