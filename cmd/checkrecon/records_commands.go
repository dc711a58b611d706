package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"checkrecon/internal/config"
	"checkrecon/internal/records"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"record"},
		Short:   "Inspect and retry check records",
	}
	recordsCmd.AddCommand(newRecordsStatusCommand(ctx))
	recordsCmd.AddCommand(newRecordsListCommand(ctx))
	recordsCmd.AddCommand(newRecordsShowCommand(ctx))
	recordsCmd.AddCommand(newRecordsRetryCommand(ctx))
	return recordsCmd
}

func newRecordsStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show record counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if health.Total == 0 {
					fmt.Fprintln(out, "No records; load a dataset with `checkrecon ingest`")
					return nil
				}
				fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, buildStatusRows(stats), 1))
				fmt.Fprintf(out, "Total %d: %d pending, %d in flight, %d processed, %d failed; %d open batch(es)\n",
					health.Total, health.Pending, health.InFlight, health.Processed, health.Failed, health.OpenBatch)
				if len(health.PayeeMatch) > 0 {
					fmt.Fprintf(out, "Payee matches: %d yes, %d no, %d pending\n",
						health.PayeeMatch[records.PayeeMatchYes],
						health.PayeeMatch[records.PayeeMatchNo],
						health.PayeeMatch[records.PayeeMatchPending])
				}
				return nil
			})
		},
	}
}

func newRecordsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var batchID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, optionally filtered by status or batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := records.RecordFilter{BatchID: strings.TrimSpace(batchID), Limit: limit}
			for _, value := range statusFlags {
				status, ok := records.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				recs, err := store.ListRecords(cmd.Context(), filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(recs) == 0 {
					fmt.Fprintln(out, "No records")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Record", "Account", "Check", "Payees", "Status", "Batch", "Error"},
					buildRecordRows(recs),
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVar(&batchID, "batch", "", "Filter by batch id")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum records to list")
	return cmd
}

func newRecordsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <record-id>",
		Short: "Show a record with its OCR text and payee outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				rec, err := store.GetRecord(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				results, err := store.OCRResultsForRecord(cmd.Context(), rec.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Record:  %s\n", rec.ID)
				fmt.Fprintf(out, "Check:   %s\n", rec.Label())
				if rec.Amount.Valid {
					fmt.Fprintf(out, "Amount:  %s\n", rec.Amount.Decimal.StringFixed(2))
				}
				if rec.IssueDate != nil {
					fmt.Fprintf(out, "Issued:  %s\n", rec.IssueDate.Format("2006-01-02"))
				}
				fmt.Fprintf(out, "Payees:  %s\n", strings.Join(rec.Candidates(), " / "))
				fmt.Fprintf(out, "Status:  %s\n", formatStatusLabel(string(rec.Status)))
				if rec.BatchID != "" {
					fmt.Fprintf(out, "Batch:   %s\n", rec.BatchID)
				}
				if rec.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:   %s\n", rec.ErrorMessage)
				}
				printOCRResults(cmd, results)
				return nil
			})
		},
	}
}

func printOCRResults(cmd *cobra.Command, results []*records.OCRResult) {
	out := cmd.OutOrStdout()
	for _, result := range results {
		fmt.Fprintf(out, "\nPage %d (%s): payee match %s\n", result.Page, result.PreprocessingType, result.PayeeMatch)
		if result.Best != nil {
			fmt.Fprintf(out, "  best: %s %.1f %q\n", result.Best.Candidate, result.Best.Score, result.Best.Window)
		}
		for _, possible := range result.Possible {
			fmt.Fprintf(out, "  possible: %s %.1f %q\n", possible.Candidate, possible.Score, possible.Window)
		}
		if text := strings.TrimSpace(result.ExtractedText); text != "" {
			fmt.Fprintln(out, "  text:")
			for _, line := range strings.Split(text, "\n") {
				fmt.Fprintf(out, "    %s\n", line)
			}
		}
	}
}

func newRecordsRetryCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "retry [record-id...]",
		Short: "Return failed records to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("pass record ids or --all")
			}
			if len(args) > 0 && all {
				return fmt.Errorf("--all cannot be combined with record ids")
			}
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				count, err := store.Requeue(cmd.Context(), args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d record(s)\n", count)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Retry every failed record")
	return cmd
}
