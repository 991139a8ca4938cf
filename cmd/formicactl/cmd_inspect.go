package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"formica/pkg/formica"
)

func newInspectCmd(opts *globalOptions) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "inspect [snapshot-id]",
		Short: "Show the graph of a saved automaton, or list the snapshots of a run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (runID == "") == (len(args) == 0) {
				return errors.New("inspect requires either a snapshot id or --run")
			}
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

			out := cmd.OutOrStdout()
			if runID != "" {
				ids, err := client.Snapshots(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					return fmt.Errorf("run %s left no snapshots", runID)
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			report, err := client.Inspect(cmd.Context(), formica.InspectRequest{SnapshotID: args[0]})
			if err != nil {
				return err
			}
			color := palette(opts)
			label := func(state int) string {
				switch {
				case slices.Contains(report.Reward, state):
					return color.Green(fmt.Sprintf("%d+", state)).String()
				case slices.Contains(report.Punishment, state):
					return color.Red(fmt.Sprintf("%d-", state)).String()
				default:
					return fmt.Sprintf("%d", state)
				}
			}

			fmt.Fprintf(out, "snapshot=%s run=%s\n", report.SnapshotID, report.RunID)
			fmt.Fprintf(out, "states=%s transitions=%s expectancies=%s\n",
				humanize.Comma(int64(report.States)),
				humanize.Comma(int64(report.Transitions)),
				humanize.Comma(int64(report.Expectancies)),
			)
			fmt.Fprintf(out, "current=%s anchor=%s clock=%.2f\n", label(report.Current), label(report.Anchor), report.Clock)

			t := newTable(out, "FROM", "SYMBOL", "TO", "OUTPUT", "P", "CONFIDENCE", "PENDING")
			t.SetColumnConfigs(alignRight(5, 6))
			for _, row := range report.Rows {
				symbol := row.Symbol
				if symbol == "" {
					symbol = "ε"
				}
				pending := ""
				if row.Temporary {
					pending = "yes"
				}
				t.AppendRow(table.Row{
					label(row.From),
					symbol,
					label(row.To),
					row.Output,
					fmt.Sprintf("%.3f", row.Probability),
					fmt.Sprintf("%.3f", row.Confidence),
					pending,
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "list the snapshots left by this run")
	return cmd
}
