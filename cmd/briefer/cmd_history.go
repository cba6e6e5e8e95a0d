package main

import (
	"fmt"

	"briefer/internal/store"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history USER",
		Short: "List the briefs stored for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			h, err := store.OpenHistory(ctx, historyOptions(cfg))
			if err != nil {
				return err
			}
			defer h.Close()

			briefs, err := h.History(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				for i := range briefs {
					js, err := briefJSON(&briefs[i])
					if err != nil {
						return err
					}
					fmt.Fprintln(out, js)
				}
				return nil
			}
			if len(briefs) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("no briefs for "+args[0]))
				return nil
			}
			fmt.Fprintln(out, historyTable(args[0], briefs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print full briefs as JSON")
	return cmd
}

func newTraceCmd() *cobra.Command {
	var showDocs bool
	cmd := &cobra.Command{
		Use:   "trace RUN_ID",
		Short: "Show the checkpoints recorded in SQLite for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := store.NewLocalStore(cfg.History.DatabasePath)
			if err != nil {
				return err
			}
			defer local.Close()

			records, err := store.NewCheckpointStore(local).ForRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("no checkpoints for run "+args[0]))
				return nil
			}
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d checkpoints", len(records))))
			fmt.Fprintln(out, traceTable(args[0], records))
			if showDocs {
				for _, r := range records {
					fmt.Fprintf(out, "\n%s\n%s\n", titleStyle.Render(r.Step), r.Doc)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showDocs, "docs", false, "Print each checkpoint document")
	return cmd
}
