// pkg/cli/options.go
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"bayeslite/pkg/bayesdb"
)

var (
	// ErrUsage is returned when the command line cannot be parsed
	ErrUsage = errors.New("usage error")

	// ErrHelp is returned when -h/--help was given and help was printed
	ErrHelp = errors.New("help requested")
)

// Options holds the parsed command line.
type Options struct {
	// Path is the database file, or bayesdb.MemoryPath
	Path string

	// Jobs selects the engine: 1 runs locally, anything else runs in
	// parallel with at most Jobs workers when Jobs > 1
	Jobs int

	// Seed seeds the engine; nil lets the engine pick one
	Seed *int64

	// Files are command files replayed before the command loop
	Files []string

	// Batch is accepted for compatibility; it does not skip the command loop
	Batch bool

	// Debug turns on debug logging and makes command errors fatal
	Debug bool

	// NoInitFile skips ~/.bayesliterc
	NoInitFile bool
}

// newCommand builds the root command. RunE only records the positional
// argument; the launcher runs outside cobra.
func newCommand(opts *Options, parsed *bool) *cobra.Command {
	var seed int64

	cmd := &cobra.Command{
		Use:   "bayeslite [flags] [bdbpath]",
		Short: "Interactive shell for a bayesdb database",
		Long: `bayeslite opens a bayesdb database file (an in-memory database by
default), registers the crosscat metamodel and starts an interactive
shell. Command files given with -f are replayed first.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Path = args[0]
			}
			if cmd.Flags().Changed("seed") {
				opts.Seed = &seed
			}
			*parsed = true
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.Jobs, "njob", "j", 0, "Max number of jobs (processes) useable.")
	f.Int64VarP(&seed, "seed", "s", 0, "Random seed for the default generator.")
	f.StringArrayVarP(&opts.Files, "file", "f", nil,
		"Path to commands file. May be used to specify a project-specific init file.")
	f.BoolVar(&opts.Batch, "batch", false, "Exit after executing file specified with -f.")
	f.BoolVar(&opts.Debug, "debug", false, "For unit tests.")
	f.BoolVar(&opts.NoInitFile, "no-init-file", false, "Do not load ~/"+InitFileName)

	return cmd
}

// ParseArgs parses the command-line arguments (without the program
// name). Help goes to stdout; usage errors are reported on stderr.
func ParseArgs(args []string, stdout, stderr io.Writer) (*Options, error) {
	opts := &Options{Path: bayesdb.MemoryPath}
	parsed := false
	cmd := newCommand(opts, &parsed)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	expanded, err := expandFileArgs(args)
	if err == nil {
		cmd.SetArgs(expanded)
		err = cmd.Execute()
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprint(stderr, cmd.UsageString())
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if !parsed {
		return nil, ErrHelp
	}
	return opts, nil
}

// expandFileArgs lets -f/--file take several paths in a row:
// "-f a b" becomes "-f a -f b". Every token after the flag up to the
// next one starting with "-" is taken as a path.
func expandFileArgs(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		tok := args[i]
		if tok == "--" {
			out = append(out, args[i:]...)
			break
		}
		if tok != "-f" && tok != "--file" {
			out = append(out, tok)
			continue
		}

		n := 0
		for i+1 < len(args) && !isFlag(args[i+1]) {
			i++
			out = append(out, tok, args[i])
			n++
		}
		if n == 0 {
			return nil, fmt.Errorf("flag %s: expected at least one argument", tok)
		}
	}
	return out, nil
}

func isFlag(tok string) bool {
	return strings.HasPrefix(tok, "-") && tok != "-"
}
