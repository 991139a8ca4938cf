package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"formica/internal/storage"
)

// version is set at build time via -ldflags.
var version = "dev"

type globalOptions struct {
	store         string
	dbPath        string
	benchmarksDir string
	noColor       bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "formicactl",
		Short: "Run and inspect colonies of self-modifying transducers",
		Long: "formicactl runs colonies of learning automata on simulated scapes,\n" +
			"lists past runs and inspects the automata they left behind.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.store, "store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	pf.StringVar(&opts.dbPath, "db-path", "formica.db", "sqlite database path")
	pf.StringVar(&opts.benchmarksDir, "benchmarks-dir", "benchmarks", "directory for run artifacts and the run index")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored status lines")

	root.AddCommand(
		newRunCmd(opts),
		newRunsCmd(opts),
		newInspectCmd(opts),
		newParamsCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
