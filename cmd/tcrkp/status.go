package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"tcrkp/internal/infra/persistence"
	"tcrkp/internal/observability"
)

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [run-id]",
		Short: "List recorded runs, or print one run as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ledger, err := persistence.Open(cmd.Context(), c.cfg.Storage)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer func() { err = multierr.Append(err, ledger.Close()) }()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				run, err := ledger.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}
			list, err := ledger.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTATUS\tSIMULATION\tSAMPLES\tPENDING\tCREATED")
			for _, r := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", r.ID, r.Status, r.SimulationName,
					len(r.Samples), len(r.Pending()), r.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) waitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wait <run-id>",
		Short: "Wait for the outputs of a recorded run",
		Long: `Re-attaches the wait loop to a run recorded by generate, for example
after the submitting process was interrupted. Samples that failed to
submit are not waited on. The configured post-process command runs once
every output exists.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			d, closeAll, err := c.openDriver(ctx, observability.Nop{})
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, closeAll()) }()
			report, err := d.Wait(ctx, args[0], c.cfg.Jobs.PostProcess)
			if report.RunID != "" {
				printReport(cmd.OutOrStdout(), report)
			}
			return err
		},
	}
}
