package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"checkrecon/internal/config"
	"checkrecon/internal/records"
	"checkrecon/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var batches int
	var watch bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process pending records in batches",
		Long: "Claims batches of pending records and runs them through download, render, OCR and payee matching.\n" +
			"Without --watch the command stops once no pending records remain or --batches is reached.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				mgr, err := newManager(cfg, store, logger)
				if err != nil {
					return err
				}
				if err := mgr.Preflight(runCtx); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if watch {
					fmt.Fprintln(out, "Watching for pending records; press Ctrl+C to stop")
					return mgr.Run(runCtx)
				}

				limit := batches
				if !cmd.Flags().Changed("batches") {
					limit = cfg.Batch.MaxBatches
				}
				reports, err := mgr.Drain(runCtx, limit)
				printReports(out, reports)
				if errors.Is(err, context.Canceled) {
					fmt.Fprintln(out, "Interrupted; unfinished batches resume on the next run")
					return nil
				}
				return err
			})
		},
	}

	cmd.Flags().IntVar(&batches, "batches", 0, "Maximum batches to process (0 drains the pool)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep polling for new records until interrupted")
	return cmd
}

func printReports(out io.Writer, reports []workflow.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(out, "No pending records")
		return
	}
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []string{
			r.BatchID,
			fmt.Sprintf("%d", r.Claimed),
			fmt.Sprintf("%d", r.Processed),
			fmt.Sprintf("%d", r.Failed),
			fmt.Sprintf("%d", r.Skipped),
			yesNo(r.Completed),
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Batch", "Claimed", "Processed", "Failed", "Skipped", "Completed", "Duration"},
		rows, 1, 2, 3, 4,
	))
}
