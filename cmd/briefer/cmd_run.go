package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"briefer/internal/pipeline"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		depth    int
		followUp bool
		userID   string
		format   string
		runID    string
	)
	cmd := &cobra.Command{
		Use:   "run TOPIC...",
		Short: "Generate one research brief",
		Long: `Runs the full pipeline for TOPIC and prints the finalized brief.

Example:
  briefer run "solid state batteries" --depth 2 --user-id alice --follow-up`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "markdown" {
				return fmt.Errorf("unknown format %q (want json or markdown)", format)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			brief, err := a.pipeline.Run(ctx, pipeline.Request{
				Topic:    strings.Join(args, " "),
				Depth:    depth,
				FollowUp: followUp,
				UserID:   userID,
				RunID:    runID,
			})
			a.logUsage()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(fmt.Sprintf("[%s] %v", pipeline.KindOf(err), err)))
				return err
			}

			out := cmd.OutOrStdout()
			if format == "markdown" {
				fmt.Fprint(out, renderMarkdown(briefMarkdown(brief), 100))
				return nil
			}
			js, err := briefJSON(brief)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, js)
			return nil
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", 1, "Research depth (>= 1)")
	cmd.Flags().BoolVar(&followUp, "follow-up", false, "Use the user's earlier briefs as context")
	cmd.Flags().StringVarP(&userID, "user-id", "u", "local_user", "User the brief is stored under")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or markdown")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (default: random UUID)")
	return cmd
}
