// pkg/cli/run.go
//
// Package cli implements the bayeslite launcher: it parses the command
// line, opens the database, registers the crosscat metamodel and runs
// the shell.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"bayeslite/pkg/bayesdb"
	"bayeslite/pkg/crosscat"
	"bayeslite/pkg/metamodel"
	"bayeslite/pkg/shell"
	"bayeslite/pkg/shell/hook"
)

// InitFileName is the per-user init file, looked up in the home directory.
const InitFileName = ".bayesliterc"

// Exit codes returned by Run.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// InitFilePath returns the location of the user's init file.
func InitFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, InitFileName), nil
}

// Run is the whole launcher. argv includes the program name. The return
// value is the process exit code.
func Run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, argv []string) int {
	var args []string
	if len(argv) > 1 {
		args = argv[1:]
	}

	opts, err := ParseArgs(args, stdout, stderr)
	if errors.Is(err, ErrHelp) {
		return ExitOK
	}
	if err != nil {
		return ExitUsage
	}

	logger := NewLogger(stderr, opts.Debug)
	defer logger.Sync()

	db, err := bayesdb.OpenWithOptions(opts.Path, bayesdb.Options{Logger: logger})
	if err != nil {
		fmt.Fprintf(stderr, "Error opening database: %v\n", err)
		return ExitError
	}
	defer db.Close()
	logger.Debug("opened database", zap.String("path", db.Path()), zap.Bool("memory", db.IsMemory()))

	engine := SelectBackend(opts.Jobs, opts.Seed).NewEngine(logger)
	if err := db.RegisterMetamodel(ctx, metamodel.NewCrosscat(engine, logger)); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}

	sh := shell.New(db, metamodel.Name, shell.Options{
		Debug:  opts.Debug,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		Logger: logger,
	})

	if err := runShell(ctx, sh, opts, engine, logger); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitOK
}

// runShell replays the init file and command files, then enters the
// command loop, all with sh as the current shell.
func runShell(ctx context.Context, sh *shell.Shell, opts *Options, engine crosscat.Engine, logger *zap.Logger) error {
	if err := registerHooks(); err != nil {
		return err
	}
	restore, err := hook.SetCurrentShell(sh)
	if err != nil {
		return err
	}
	defer restore()

	if err := hook.AddCommand(".engine", "Show the modeling engine", engineCommand(engine)); err != nil {
		return err
	}

	if !opts.NoInitFile {
		path, err := InitFilePath()
		if err != nil {
			logger.Debug("no home directory, skipping init file", zap.Error(err))
		} else if isFile(path) {
			if err := sh.DotRead(ctx, path); err != nil {
				return err
			}
		}
	}

	for _, path := range opts.Files {
		if !isFile(path) {
			fmt.Fprintf(sh.Stdout(), "%s is not a file.  Aborting.\n", path)
			break
		}
		if err := sh.DotRead(ctx, path); err != nil {
			return err
		}
	}

	// --batch is accepted but still falls through to the command loop,
	// which returns at EOF when stdin is not a terminal.
	if opts.Batch {
		logger.Debug("batch mode requested")
	}

	return sh.CmdLoop(ctx)
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// engineCommand reports the engine's configuration.
func engineCommand(engine crosscat.Engine) shell.CommandFunc {
	return func(ctx context.Context, sh *shell.Shell, args []string) error {
		fmt.Fprintf(sh.Stdout(), "engine:  %s\n", engine.Kind())
		fmt.Fprintf(sh.Stdout(), "workers: %d\n", engine.Workers())
		fmt.Fprintf(sh.Stdout(), "seed:    %d\n", engine.Seed())
		return nil
	}
}

var (
	registerOnce sync.Once
	registerErr  error
)

// registerHooks adds the launcher's process-wide hook commands. They
// only use the shell they are called with, so every shell can share them.
func registerHooks() error {
	registerOnce.Do(func() {
		registerErr = hook.Register(".database", "Show the open database", databaseCommand)
	})
	return registerErr
}

func databaseCommand(ctx context.Context, sh *shell.Shell, args []string) error {
	db := sh.DB()
	if db.IsMemory() {
		fmt.Fprintln(sh.Stdout(), "database: in-memory")
		return nil
	}
	fmt.Fprintf(sh.Stdout(), "database: %s\n", db.Path())
	return nil
}
