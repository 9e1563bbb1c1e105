package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// version is set via -ldflags at release time.
var version = "dev"

// globalOptions holds the flags shared by every command.
type globalOptions struct {
	verbose   bool
	logFormat string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

// newRootCommand builds the winlib command tree.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "winlib",
		Short: "Inspect and rewrite Windows static libraries",
		Long: `Inspect and rewrite Windows static libraries (COFF .lib archives).

winlib lists the members of a library and builds new libraries from old
ones, dropping members by offset or dropping every member that takes part
in the import table.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every member decision")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: text or json (default: text on a terminal, json otherwise)")

	root.AddCommand(newListCommand(opts))
	root.AddCommand(newCreateCommand(opts))
	return root
}
