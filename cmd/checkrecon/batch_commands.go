package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"checkrecon/internal/config"
	"checkrecon/internal/records"
	"checkrecon/internal/workflow"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Inspect and manage batches",
	}
	batchCmd.AddCommand(newBatchListCommand(ctx))
	batchCmd.AddCommand(newBatchShowCommand(ctx))
	batchCmd.AddCommand(newBatchResumeCommand(ctx))
	batchCmd.AddCommand(newBatchCompleteCommand(ctx))
	return batchCmd
}

func newBatchListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				batches, err := store.ListBatches(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(batches) == 0 {
					fmt.Fprintln(out, "No batches")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Status", "Records", "Processed", "Failed", "Created", "Heartbeat"},
					buildBatchRows(batches), 2, 3, 4,
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum batches to list")
	return cmd
}

func newBatchShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show a batch and its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				batch, err := store.GetBatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				summary, err := store.BatchSummary(cmd.Context(), batch.ID)
				if err != nil {
					return err
				}
				recs, err := store.RecordsByBatch(cmd.Context(), batch.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Batch:     %s\n", batch.ID)
				fmt.Fprintf(out, "Status:    %s\n", formatStatusLabel(string(batch.Status)))
				fmt.Fprintf(out, "Created:   %s\n", formatDisplayTime(&batch.CreatedAt))
				fmt.Fprintf(out, "Heartbeat: %s\n", formatDisplayTime(batch.HeartbeatAt))
				if batch.CompletedAt != nil {
					fmt.Fprintf(out, "Completed: %s (%d processed, %d failed)\n",
						formatDisplayTime(batch.CompletedAt), batch.ProcessedRecords, batch.FailedRecords)
				}
				if msg := strings.TrimSpace(batch.ErrorMessage); msg != "" {
					fmt.Fprintf(out, "Error:     %s\n", msg)
				}
				if len(summary) > 0 {
					fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, buildStatusRows(summary), 1))
				}
				if len(recs) > 0 {
					fmt.Fprintln(out, renderTable(
						[]string{"Record", "Account", "Check", "Payees", "Status", "Batch", "Error"},
						buildRecordRows(recs),
					))
				}
				return nil
			})
		},
	}
}

func newBatchResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <batch-id>",
		Short: "Continue an unfinished batch from where each record stopped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				mgr, err := newManager(cfg, store, logger)
				if err != nil {
					return err
				}
				report, err := mgr.ResumeBatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printReports(cmd.OutOrStdout(), []workflow.Report{report})
				return nil
			})
		},
	}
}

func newBatchCompleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <batch-id>",
		Short: "Mark a batch completed once all of its records are terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				batch, err := store.CompleteBatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Batch %s completed: %d processed, %d failed of %d\n",
					batch.ID, batch.ProcessedRecords, batch.FailedRecords, batch.RecordCount)
				return nil
			})
		},
	}
}
