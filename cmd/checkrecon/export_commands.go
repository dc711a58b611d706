package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"checkrecon/internal/config"
	"checkrecon/internal/export"
	"checkrecon/internal/records"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write reports for manual review",
	}
	exportCmd.AddCommand(newExportMismatchesCommand(ctx))
	exportCmd.AddCommand(newExportExtractedCommand(ctx))
	return exportCmd
}

func newExportMismatchesCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var batchID string

	cmd := &cobra.Command{
		Use:   "mismatches",
		Short: "Export OCR results whose payee did not match (CSV or XLSX)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				target, err := exportTarget(cfg, outPath, "mismatches.csv")
				if err != nil {
					return err
				}
				n, err := export.NewExporter(store, logger).Mismatches(cmd.Context(), target, strings.TrimSpace(batchID))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d mismatch(es) to %s\n", n, target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (.csv or .xlsx); defaults to the export directory")
	cmd.Flags().StringVar(&batchID, "batch", "", "Only export records of this batch")
	return cmd
}

func newExportExtractedCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var batchID string

	cmd := &cobra.Command{
		Use:   "extracted",
		Short: "Export the OCR text of every extracted record as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				target, err := exportTarget(cfg, outPath, "extracted_data.csv")
				if err != nil {
					return err
				}
				n, err := export.NewExporter(store, logger).Extracted(cmd.Context(), target, strings.TrimSpace(batchID))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d row(s) to %s\n", n, target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output CSV file; defaults to the export directory")
	cmd.Flags().StringVar(&batchID, "batch", "", "Only export records of this batch")
	return cmd
}

func exportTarget(cfg *config.Config, outPath, fallback string) (string, error) {
	if strings.TrimSpace(outPath) == "" {
		return filepath.Join(cfg.Paths.ExportDir, fallback), nil
	}
	return config.ExpandPath(strings.TrimSpace(outPath))
}
