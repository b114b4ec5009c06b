// pkg/bayesdb/generator.go
package bayesdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoSuchGenerator is returned when a table has no generator.
var ErrNoSuchGenerator = errors.New("no such generator")

// Generator ties a table to the metamodel whose models describe it.
type Generator struct {
	ID        string
	Table     string
	Metamodel string
	Created   time.Time
}

const generatorSchema = `CREATE TABLE IF NOT EXISTS bayesdb_generator (
	id        TEXT NOT NULL PRIMARY KEY,
	tabname   TEXT NOT NULL UNIQUE COLLATE NOCASE,
	metamodel TEXT NOT NULL,
	created   TEXT NOT NULL
)`

// createSchema creates the bookkeeping tables owned by the handle itself.
func (db *DB) createSchema(ctx context.Context) error {
	if _, err := db.sql.ExecContext(ctx, generatorSchema); err != nil {
		return fmt.Errorf("create bayesdb schema: %w", err)
	}
	return nil
}

// CreateGenerator records a new generator for table, owned by the named
// metamodel. The table must exist and must not already have a generator.
func (db *DB) CreateGenerator(ctx context.Context, table, metamodel string) (*Generator, error) {
	ok, err := db.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchTable, table)
	}
	if _, err := db.Metamodel(metamodel); err != nil {
		return nil, err
	}

	g := &Generator{
		ID:        uuid.NewString(),
		Table:     table,
		Metamodel: metamodel,
		Created:   time.Now().UTC(),
	}
	_, err = db.Exec(ctx,
		`INSERT INTO bayesdb_generator (id, tabname, metamodel, created) VALUES (?, ?, ?, ?)`,
		g.ID, g.Table, g.Metamodel, g.Created.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("create generator for %s: %w", table, err)
	}
	return g, nil
}

// Generator returns the generator for table.
func (db *DB) Generator(ctx context.Context, table string) (*Generator, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	var g Generator
	var created string
	err := db.sql.QueryRowContext(ctx,
		`SELECT id, tabname, metamodel, created FROM bayesdb_generator WHERE tabname = ?`, table,
	).Scan(&g.ID, &g.Table, &g.Metamodel, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchGenerator, table)
	}
	if err != nil {
		return nil, err
	}

	g.Created, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("generator %s: bad timestamp %q: %w", g.ID, created, err)
	}
	return &g, nil
}
