// pkg/metamodel/store.go
package metamodel

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"bayeslite/pkg/bayesdb"
	"bayeslite/pkg/crosscat"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS bayesdb_crosscat_model (
		generator_id TEXT NOT NULL,
		modelno      INTEGER NOT NULL,
		iterations   INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (generator_id, modelno)
	)`,
	`CREATE TABLE IF NOT EXISTS bayesdb_crosscat_column (
		generator_id TEXT NOT NULL,
		modelno      INTEGER NOT NULL,
		colno        INTEGER NOT NULL,
		colname      TEXT NOT NULL,
		kind         TEXT NOT NULL,
		mean         REAL,
		stddev       REAL,
		PRIMARY KEY (generator_id, modelno, colno)
	)`,
	`CREATE TABLE IF NOT EXISTS bayesdb_crosscat_category (
		generator_id TEXT NOT NULL,
		modelno      INTEGER NOT NULL,
		colno        INTEGER NOT NULL,
		value        TEXT NOT NULL,
		weight       REAL NOT NULL,
		PRIMARY KEY (generator_id, modelno, colno, value)
	)`,
}

// loadRows reads the named columns of every row of table.
func loadRows(ctx context.Context, db *bayesdb.DB, table string, columns []string) ([][]any, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = bayesdb.QuoteIdent(c)
	}
	res, err := db.Exec(ctx, "SELECT "+strings.Join(quoted, ", ")+" FROM "+bayesdb.QuoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return res.Rows, nil
}

// loadModels reads every model of a generator, keyed by model number.
func loadModels(ctx context.Context, db *bayesdb.DB, genID string) (map[int]*crosscat.Model, error) {
	models := make(map[int]*crosscat.Model)

	res, err := db.Exec(ctx,
		`SELECT modelno, iterations FROM bayesdb_crosscat_model WHERE generator_id = ?`, genID)
	if err != nil {
		return nil, err
	}
	for _, row := range res.Rows {
		models[asInt(row[0])] = &crosscat.Model{Iterations: asInt(row[1])}
	}

	res, err = db.Exec(ctx, `SELECT modelno, colname, kind, mean, stddev
		FROM bayesdb_crosscat_column WHERE generator_id = ?
		ORDER BY modelno, colno`, genID)
	if err != nil {
		return nil, err
	}
	for _, row := range res.Rows {
		m, ok := models[asInt(row[0])]
		if !ok {
			return nil, fmt.Errorf("generator %s: column row for unknown model %v", genID, row[0])
		}
		m.Columns = append(m.Columns, crosscat.ColumnModel{
			Name:   asString(row[1]),
			Kind:   crosscat.ColumnKind(asString(row[2])),
			Mean:   asFloat(row[3]),
			StdDev: asFloat(row[4]),
		})
	}

	res, err = db.Exec(ctx, `SELECT modelno, colno, value, weight
		FROM bayesdb_crosscat_category WHERE generator_id = ?`, genID)
	if err != nil {
		return nil, err
	}
	for _, row := range res.Rows {
		m, ok := models[asInt(row[0])]
		colno := asInt(row[1])
		if !ok || colno >= len(m.Columns) {
			return nil, fmt.Errorf("generator %s: dangling category row %v", genID, row)
		}
		cm := &m.Columns[colno]
		if cm.Weights == nil {
			cm.Weights = make(map[string]float64)
		}
		cm.Weights[asString(row[2])] = asFloat(row[3])
	}

	return models, nil
}

// saveModels replaces the stored state of the given models.
func saveModels(ctx context.Context, db *bayesdb.DB, genID string, models map[int]*crosscat.Model) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, num := range sortedKeys(models) {
			m := models[num]
			for _, table := range []string{"bayesdb_crosscat_model", "bayesdb_crosscat_column", "bayesdb_crosscat_category"} {
				if _, err := tx.ExecContext(ctx,
					`DELETE FROM `+table+` WHERE generator_id = ? AND modelno = ?`, genID, num); err != nil {
					return err
				}
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO bayesdb_crosscat_model (generator_id, modelno, iterations) VALUES (?, ?, ?)`,
				genID, num, m.Iterations); err != nil {
				return err
			}

			for colno, cm := range m.Columns {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO bayesdb_crosscat_column (generator_id, modelno, colno, colname, kind, mean, stddev)
					VALUES (?, ?, ?, ?, ?, ?, ?)`,
					genID, num, colno, cm.Name, string(cm.Kind), cm.Mean, cm.StdDev); err != nil {
					return err
				}
				for _, value := range cm.Categories() {
					if _, err := tx.ExecContext(ctx,
						`INSERT INTO bayesdb_crosscat_category (generator_id, modelno, colno, value, weight)
						VALUES (?, ?, ?, ?, ?)`,
						genID, num, colno, value, cm.Weights[value]); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

func sortedKeys(models map[int]*crosscat.Model) []int {
	nums := make([]int, 0, len(models))
	for num := range models {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	return nums
}

func asInt(v any) int {
	switch x := v.(type) {
	case int64:
		return int(x)
	case float64:
		return int(x)
	}
	return 0
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	}
	return 0
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
