// pkg/shell/format.go
package shell

import (
	"fmt"
	"io"
	"strings"

	"bayeslite/pkg/bayesdb"
)

// writeResult prints a statement result: a table for queries, an
// affected-row count for other statements that changed rows.
func writeResult(w io.Writer, res *bayesdb.Result) {
	if res == nil {
		return
	}
	if len(res.Columns) == 0 {
		if res.RowsAffected > 0 {
			fmt.Fprintf(w, "Rows affected: %d\n", res.RowsAffected)
		}
		return
	}
	writeTable(w, res.Columns, res.Rows)
}

// writeTable formats rows as an ASCII table.
func writeTable(w io.Writer, columns []string, rows [][]any) {
	if len(columns) == 0 {
		return
	}

	cells := make([][]string, len(rows))
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}
	for r, row := range rows {
		cells[r] = make([]string, len(columns))
		for i := range columns {
			var s string
			if i < len(row) {
				s = formatValue(row[i])
			}
			cells[r][i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	writeSeparator(w, widths)
	writeRow(w, columns, widths)
	writeSeparator(w, widths)
	for _, row := range cells {
		writeRow(w, row, widths)
	}
	writeSeparator(w, widths)
	fmt.Fprintf(w, "%d row(s)\n", len(rows))
}

func writeSeparator(w io.Writer, widths []int) {
	var sb strings.Builder
	sb.WriteString("+")
	for _, n := range widths {
		sb.WriteString(strings.Repeat("-", n+2))
		sb.WriteString("+")
	}
	fmt.Fprintln(w, sb.String())
}

func writeRow(w io.Writer, values []string, widths []int) {
	var sb strings.Builder
	sb.WriteString("|")
	for i, val := range values {
		fmt.Fprintf(&sb, " %-*s |", widths[i], val)
	}
	fmt.Fprintln(w, sb.String())
}

// formatValue converts a value to its string representation.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%g", val)
	case []byte:
		return fmt.Sprintf("[blob %d bytes]", len(val))
	default:
		return fmt.Sprintf("%v", val)
	}
}
