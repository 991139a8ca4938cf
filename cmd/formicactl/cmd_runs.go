package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"formica/pkg/formica"
)

func newRunsCmd(opts *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := formica.New(formica.Options{
				StoreKind:     opts.store,
				DBPath:        opts.dbPath,
				BenchmarksDir: opts.benchmarksDir,
			})
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			runs, err := client.Runs(cmd.Context(), formica.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, palette(opts).Yellow("no runs recorded"))
				return nil
			}

			t := newTable(out, "RUN", "CREATED (UTC)", "SCAPE", "AGENTS", "EPISODES", "SEED", "BEST", "FINAL MEAN")
			t.SetColumnConfigs(alignRight(4, 5, 6, 7, 8))
			for _, run := range runs {
				t.AppendRow(table.Row{
					run.RunID,
					run.CreatedAtUTC,
					run.Scape,
					humanize.Comma(int64(run.Agents)),
					humanize.Comma(int64(run.Episodes)),
					run.Seed,
					fmt.Sprintf("%.4f", run.BestFitness),
					fmt.Sprintf("%.4f", run.MeanFitness),
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}
