package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run journal",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.requireStore()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tMODE\tLANGUAGE\tFILES\tMATCHES\tFAILED\tPATTERN")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.ID, r.StartedAt.Format(time.DateTime), r.Mode, r.Language,
					r.FileCount, r.Matches, r.Failed, firstLine(r.Pattern))
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (0: all)")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run and its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.requireStore()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), run)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s (%s, %s) %s\n", run.ID, run.Mode, run.Language, run.Pattern)
			fmt.Fprintf(out, "files %d, matches %d, rewritten %d, failed %d, reads %d, parses %d, %dms\n",
				run.FileCount, run.Matches, run.Rewritten, run.Failed, run.Reads, run.Parses, run.DurationMS)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, f := range run.RunFiles {
				detail := ""
				if f.ErrorCode != "" {
					detail = f.ErrorCode + ": " + f.Error
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", f.Path, f.Status, f.Matches, detail)
			}
			return tw.Flush()
		},
	}

	var keep int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.requireStore()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d runs\n", n)
			return nil
		},
	}
	prune.Flags().IntVar(&keep, "keep", 50, "runs to keep")

	cmd.AddCommand(list, show, prune)
	return cmd
}
