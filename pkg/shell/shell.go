// pkg/shell/shell.go
//
// Package shell implements the interactive bayeslite command shell: SQL
// statements, dot commands and command-file replay over a bayesdb handle.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"bayeslite/pkg/bayesdb"
)

var (
	// ErrUnknownCommand is returned for a dot command with no handler
	ErrUnknownCommand = errors.New("unknown command")

	// ErrCommandExists is returned when adding a command whose name is taken
	ErrCommandExists = errors.New("command already defined")

	// ErrUsage is returned when a dot command gets the wrong arguments
	ErrUsage = errors.New("usage")

	// ErrReadDepth is returned when .read files nest too deeply
	ErrReadDepth = errors.New("too many nested .read commands")
)

// maxReadDepth bounds .read nesting so a file that reads itself fails
// instead of recursing forever.
const maxReadDepth = 32

// CommandFunc runs a dot command. args excludes the command name.
type CommandFunc func(ctx context.Context, sh *Shell, args []string) error

type command struct {
	name  string
	usage string
	help  string
	fn    CommandFunc
}

// Options configures a Shell.
type Options struct {
	// Debug makes command errors abort DotRead and CmdLoop instead of
	// being reported and skipped.
	Debug bool

	// Stdin, Stdout and Stderr default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Logger *zap.Logger
}

// Shell executes SQL and dot commands against a database, using one
// registered metamodel for modeling commands.
type Shell struct {
	db        *bayesdb.DB
	metamodel string
	debug     bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// reader splits stdin into statements for CmdLoop
	reader *LineReader

	// interactive is set when stdin is a terminal; it enables the banner
	// and prompts
	interactive bool

	commands map[string]*command

	// exitRequested is set by .quit and ends the current loop or file
	exitRequested bool

	// readDepth counts the .read files currently being replayed
	readDepth int

	logger *zap.Logger
}

// New creates a shell bound to db. metamodel names the registered
// metamodel that modeling commands use.
func New(db *bayesdb.DB, metamodel string, opts Options) *Shell {
	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Shell{
		db:          db,
		metamodel:   metamodel,
		debug:       opts.Debug,
		stdin:       stdin,
		stdout:      stdout,
		stderr:      stderr,
		interactive: isTerminal(stdin),
		commands:    make(map[string]*command),
		logger:      logger.Named("shell"),
	}

	var prompts io.Writer
	if s.interactive {
		prompts = stdout
	}
	s.reader = NewLineReader(stdin, prompts)

	s.addBuiltins()
	return s
}

// DB returns the database the shell is bound to.
func (s *Shell) DB() *bayesdb.DB { return s.db }

// MetamodelName returns the name of the metamodel modeling commands use.
func (s *Shell) MetamodelName() string { return s.metamodel }

// Stdout returns the shell's output stream.
func (s *Shell) Stdout() io.Writer { return s.stdout }

// Stderr returns the shell's error stream.
func (s *Shell) Stderr() io.Writer { return s.stderr }

// Debug reports whether the shell runs in debug mode.
func (s *Shell) Debug() bool { return s.debug }

// History returns the statements entered in the command loop.
func (s *Shell) History() []string { return s.reader.History() }

// AddCommand adds a dot command. The leading dot of name is optional.
func (s *Shell) AddCommand(name, help string, fn CommandFunc) error {
	name = commandName(name)
	if _, ok := s.commands[name]; ok {
		return fmt.Errorf("%w: %s", ErrCommandExists, name)
	}
	s.commands[name] = &command{name: name, usage: name, help: help, fn: fn}
	s.logger.Debug("added command", zap.String("name", name))
	return nil
}

func commandName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}
	return name
}

// Execute runs one statement: a dot command or a SQL statement.
func (s *Shell) Execute(ctx context.Context, stmt string) error {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return nil
	}

	if strings.HasPrefix(stmt, ".") {
		fields := strings.Fields(stmt)
		cmd, ok := s.commands[strings.ToLower(fields[0])]
		if !ok {
			return fmt.Errorf("%w: %s (use \".help\" for usage hints)", ErrUnknownCommand, fields[0])
		}
		s.logger.Debug("dot command", zap.String("name", cmd.name), zap.Strings("args", fields[1:]))
		return cmd.fn(ctx, s, fields[1:])
	}

	s.logger.Debug("sql", zap.String("stmt", stmt))
	res, err := s.db.Exec(ctx, stmt)
	if err != nil {
		return err
	}
	writeResult(s.stdout, res)
	return nil
}

// run executes stmt and reports its error. Only in debug mode is the
// error passed back to the caller.
func (s *Shell) run(ctx context.Context, stmt string) error {
	err := s.Execute(ctx, stmt)
	if err == nil {
		return nil
	}
	if s.debug {
		return err
	}
	fmt.Fprintf(s.stderr, "Error: %v\n", err)
	return nil
}

// CmdLoop reads and executes statements from stdin until EOF or .quit.
func (s *Shell) CmdLoop(ctx context.Context) error {
	s.exitRequested = false

	if s.interactive {
		fmt.Fprintln(s.stdout, "Welcome to the Bayeslite shell.")
		fmt.Fprintln(s.stdout, "Type `.help' for help.")
	}

	for !s.exitRequested {
		if err := ctx.Err(); err != nil {
			return err
		}

		stmt, eof := s.reader.ReadStatement()
		if eof && stmt == "" {
			if s.interactive {
				fmt.Fprintln(s.stdout)
			}
			break
		}

		if err := s.run(ctx, stmt); err != nil {
			return err
		}

		if eof {
			break
		}
	}

	s.exitRequested = false
	return nil
}

// DotRead replays the statements of a command file. A .quit in the file
// stops the replay of that file only.
func (s *Shell) DotRead(ctx context.Context, path string) error {
	if s.readDepth >= maxReadDepth {
		return fmt.Errorf("%w: %s", ErrReadDepth, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	s.readDepth++
	defer func() { s.readDepth-- }()

	s.logger.Debug("reading file", zap.String("path", path), zap.Int("depth", s.readDepth))

	reader := NewLineReader(f, nil)
	for !s.exitRequested {
		if err := ctx.Err(); err != nil {
			return err
		}

		stmt, eof := reader.ReadStatement()
		if stmt != "" {
			if err := s.run(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		if eof {
			break
		}
	}

	s.exitRequested = false
	return nil
}

// sortedCommands returns the commands ordered by name.
func (s *Shell) sortedCommands() []*command {
	cmds := make([]*command, 0, len(s.commands))
	for _, c := range s.commands {
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].name < cmds[j].name })
	return cmds
}
