// pkg/bayesdb/exec.go
package bayesdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Result holds the outcome of a statement executed through Exec.
type Result struct {
	// Columns names the result columns; empty for statements that return no rows
	Columns []string

	// Rows holds the materialized result rows
	Rows [][]any

	// RowsAffected is the number of rows changed by a non-query statement
	RowsAffected int64
}

// rowKeywords are leading keywords of statements that return rows.
var rowKeywords = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"PRAGMA":  true,
	"VALUES":  true,
	"EXPLAIN": true,
}

// returnsRows reports whether a statement is expected to produce a result set.
func returnsRows(query string) bool {
	q := skipComments(query)
	end := strings.IndexFunc(q, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end >= 0 {
		q = q[:end]
	}
	return rowKeywords[strings.ToUpper(q)]
}

// skipComments drops leading whitespace, opening parentheses and SQL
// comments from query.
func skipComments(query string) string {
	q := query
	for {
		q = strings.TrimLeft(q, " \t\r\n(")
		switch {
		case strings.HasPrefix(q, "--"):
			nl := strings.IndexByte(q, '\n')
			if nl < 0 {
				return ""
			}
			q = q[nl+1:]
		case strings.HasPrefix(q, "/*"):
			end := strings.Index(q, "*/")
			if end < 0 {
				return ""
			}
			q = q[end+2:]
		default:
			return q
		}
	}
}

// Exec executes a single SQL statement and materializes its result.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (*Result, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	if returnsRows(query) {
		return db.query(ctx, query, args...)
	}

	res, err := db.sql.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	return &Result{RowsAffected: n}, nil
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

// collectRows reads every row from rows and closes it. []byte values are
// copied since the driver may reuse the buffer.
func collectRows(rows *sql.Rows) (*Result, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = append([]byte(nil), b...)
			}
		}
		result.Rows = append(result.Rows, vals)
	}
	return result, rows.Err()
}

// WithTx runs fn inside a transaction. The transaction is committed if fn
// returns nil and rolled back otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := db.checkOpen(); err != nil {
		return err
	}

	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Tables lists user tables, excluding SQLite and bayesdb bookkeeping tables.
func (db *DB) Tables(ctx context.Context) ([]string, error) {
	res, err := db.Exec(ctx, `SELECT name FROM sqlite_master
		WHERE type = 'table'
		AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		AND name NOT LIKE 'bayesdb\_%' ESCAPE '\'
		ORDER BY name`)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		names = append(names, fmt.Sprint(row[0]))
	}
	return names, nil
}

// TableExists reports whether a table with the given name exists. Names
// match case-insensitively, as in SQL.
func (db *DB) TableExists(ctx context.Context, table string) (bool, error) {
	res, err := db.Exec(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`, table)
	if err != nil {
		return false, err
	}
	n, _ := res.Rows[0][0].(int64)
	return n > 0, nil
}

// Schema returns the CREATE statement for a table.
func (db *DB) Schema(ctx context.Context, table string) (string, error) {
	res, err := db.Exec(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`, table)
	if err != nil {
		return "", err
	}
	if len(res.Rows) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoSuchTable, table)
	}
	return fmt.Sprint(res.Rows[0][0]) + ";", nil
}

// Columns returns the column names of a table in declaration order.
func (db *DB) Columns(ctx context.Context, table string) ([]string, error) {
	res, err := db.Exec(ctx, `PRAGMA table_info(`+QuoteIdent(table)+`)`)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchTable, table)
	}

	// table_info columns: cid, name, type, notnull, dflt_value, pk
	cols := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		cols = append(cols, fmt.Sprint(row[1]))
	}
	return cols, nil
}

// QuoteIdent quotes a SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
