// pkg/shell/commands.go
package shell

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"bayeslite/pkg/bayesdb"
	"bayeslite/pkg/metamodel"
)

// ErrNotModeler is returned when the shell's metamodel cannot run
// modeling commands.
var ErrNotModeler = errors.New("metamodel does not support modeling commands")

// Modeler is the modeling surface a metamodel offers the shell.
type Modeler interface {
	InitializeModels(ctx context.Context, db *bayesdb.DB, table string, n int) error
	Analyze(ctx context.Context, db *bayesdb.DB, table string, iterations int) error
	Simulate(ctx context.Context, db *bayesdb.DB, table, column string, n int) ([]any, error)
	Models(ctx context.Context, db *bayesdb.DB, table string) ([]metamodel.ModelInfo, error)
}

func (s *Shell) addBuiltins() {
	builtins := []*command{
		{name: ".analyze", usage: ".analyze TABLE [ITERATIONS]", help: "Run analysis iterations on the models of TABLE", fn: cmdAnalyze},
		{name: ".csv", usage: ".csv TABLE FILE", help: "Import a CSV file with a header row into TABLE", fn: cmdCSV},
		{name: ".exit", usage: ".exit", help: "Exit this program", fn: cmdQuit},
		{name: ".help", usage: ".help", help: "Show this help message", fn: cmdHelp},
		{name: ".history", usage: ".history", help: "Show the statements entered so far", fn: cmdHistory},
		{name: ".init_models", usage: ".init_models TABLE [N]", help: "Initialize N models (default 1) for TABLE", fn: cmdInitModels},
		{name: ".metamodels", usage: ".metamodels", help: "List registered metamodels", fn: cmdMetamodels},
		{name: ".models", usage: ".models TABLE", help: "List the models of TABLE", fn: cmdModels},
		{name: ".quit", usage: ".quit", help: "Exit this program", fn: cmdQuit},
		{name: ".read", usage: ".read FILE", help: "Execute the commands in FILE", fn: cmdRead},
		{name: ".schema", usage: ".schema [TABLE]", help: "Show CREATE statement for table(s)", fn: cmdSchema},
		{name: ".simulate", usage: ".simulate TABLE COLUMN [N]", help: "Draw N values (default 1) of COLUMN from the models", fn: cmdSimulate},
		{name: ".tables", usage: ".tables", help: "List all tables", fn: cmdTables},
	}
	for _, c := range builtins {
		s.commands[c.name] = c
	}
}

func usageError(usage string) error {
	return fmt.Errorf("%w: %s", ErrUsage, usage)
}

// intArg parses args[i] as a positive integer, defaulting to def when absent.
func intArg(args []string, i, def int, usage string) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n < 1 {
		return 0, usageError(usage)
	}
	return n, nil
}

func (s *Shell) modeler() (Modeler, error) {
	m, err := s.db.Metamodel(s.metamodel)
	if err != nil {
		return nil, err
	}
	mod, ok := m.(Modeler)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotModeler, s.metamodel)
	}
	return mod, nil
}

func cmdQuit(ctx context.Context, s *Shell, args []string) error {
	s.exitRequested = true
	return nil
}

func cmdHelp(ctx context.Context, s *Shell, args []string) error {
	cmds := s.sortedCommands()
	width := 0
	for _, c := range cmds {
		if len(c.usage) > width {
			width = len(c.usage)
		}
	}

	fmt.Fprintln(s.stdout)
	for _, c := range cmds {
		fmt.Fprintf(s.stdout, "%-*s  %s\n", width, c.usage, c.help)
	}
	fmt.Fprintln(s.stdout)
	fmt.Fprintln(s.stdout, "Enter SQL statements terminated with a semicolon.")
	fmt.Fprintln(s.stdout, "Multi-line statements are supported.")
	fmt.Fprintln(s.stdout)
	return nil
}

func cmdHistory(ctx context.Context, s *Shell, args []string) error {
	for i, stmt := range s.History() {
		fmt.Fprintf(s.stdout, "%5d  %s\n", i+1, stmt)
	}
	return nil
}

func cmdRead(ctx context.Context, s *Shell, args []string) error {
	if len(args) != 1 {
		return usageError(".read FILE")
	}
	return s.DotRead(ctx, args[0])
}

func cmdTables(ctx context.Context, s *Shell, args []string) error {
	tables, err := s.db.Tables(ctx)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		fmt.Fprintln(s.stdout, "(no tables)")
		return nil
	}
	for _, name := range tables {
		fmt.Fprintln(s.stdout, name)
	}
	return nil
}

func cmdSchema(ctx context.Context, s *Shell, args []string) error {
	tables := args
	if len(tables) == 0 {
		var err error
		if tables, err = s.db.Tables(ctx); err != nil {
			return err
		}
	}
	for _, name := range tables {
		stmt, err := s.db.Schema(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.stdout, stmt)
	}
	return nil
}

func cmdMetamodels(ctx context.Context, s *Shell, args []string) error {
	for _, name := range s.db.Metamodels() {
		marker := " "
		if name == s.metamodel {
			marker = "*"
		}
		fmt.Fprintf(s.stdout, "%s %s\n", marker, name)
	}
	return nil
}

// cmdCSV creates TABLE from the header of FILE if needed and inserts
// every record. Fields that parse as numbers are stored as numbers.
func cmdCSV(ctx context.Context, s *Shell, args []string) error {
	if len(args) != 2 {
		return usageError(".csv TABLE FILE")
	}
	table, path := args[0], args[1]

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return fmt.Errorf("%s: missing header row", path)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	cols := make([]string, len(header))
	marks := make([]string, len(header))
	for i, h := range header {
		cols[i] = bayesdb.QuoteIdent(strings.TrimSpace(h))
		marks[i] = "?"
	}
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		bayesdb.QuoteIdent(table), strings.Join(cols, ", "))
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		bayesdb.QuoteIdent(table), strings.Join(cols, ", "), strings.Join(marks, ", "))

	var count int
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, create); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for {
			record, err := r.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			vals := make([]any, len(record))
			for i, field := range record {
				vals[i] = csvValue(field)
			}
			if _, err := stmt.ExecContext(ctx, vals...); err != nil {
				return err
			}
			count++
		}
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(s.stdout, "Imported %d row(s) into %s\n", count, table)
	return nil
}

func csvValue(field string) any {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil
	}
	if n, err := strconv.ParseInt(field, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(field, 64); err == nil {
		return f
	}
	return field
}

func cmdInitModels(ctx context.Context, s *Shell, args []string) error {
	const usage = ".init_models TABLE [N]"
	if len(args) < 1 || len(args) > 2 {
		return usageError(usage)
	}
	n, err := intArg(args, 1, 1, usage)
	if err != nil {
		return err
	}
	m, err := s.modeler()
	if err != nil {
		return err
	}
	return m.InitializeModels(ctx, s.db, args[0], n)
}

func cmdAnalyze(ctx context.Context, s *Shell, args []string) error {
	const usage = ".analyze TABLE [ITERATIONS]"
	if len(args) < 1 || len(args) > 2 {
		return usageError(usage)
	}
	iterations, err := intArg(args, 1, 1, usage)
	if err != nil {
		return err
	}
	m, err := s.modeler()
	if err != nil {
		return err
	}
	return m.Analyze(ctx, s.db, args[0], iterations)
}

func cmdModels(ctx context.Context, s *Shell, args []string) error {
	if len(args) != 1 {
		return usageError(".models TABLE")
	}
	m, err := s.modeler()
	if err != nil {
		return err
	}
	infos, err := m.Models(ctx, s.db, args[0])
	if err != nil {
		return err
	}

	rows := make([][]any, len(infos))
	for i, info := range infos {
		rows[i] = []any{int64(info.Number), int64(info.Iterations)}
	}
	writeTable(s.stdout, []string{"modelno", "iterations"}, rows)
	return nil
}

func cmdSimulate(ctx context.Context, s *Shell, args []string) error {
	const usage = ".simulate TABLE COLUMN [N]"
	if len(args) < 2 || len(args) > 3 {
		return usageError(usage)
	}
	n, err := intArg(args, 2, 1, usage)
	if err != nil {
		return err
	}
	m, err := s.modeler()
	if err != nil {
		return err
	}
	values, err := m.Simulate(ctx, s.db, args[0], args[1], n)
	if err != nil {
		return err
	}

	rows := make([][]any, len(values))
	for i, v := range values {
		rows[i] = []any{v}
	}
	writeTable(s.stdout, []string{args[1]}, rows)
	return nil
}
