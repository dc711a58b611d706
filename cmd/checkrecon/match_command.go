package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"checkrecon/internal/config"
	"checkrecon/internal/records"
	"checkrecon/internal/stageexec"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "match <record-id>",
		Short: "Re-run payee matching for one record",
		Long: "Scores the stored OCR text of a record against its expected payees again.\n" +
			"The record must be in text_extracted or payee_match_attempted.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				rec, err := store.GetRecord(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				updated, err := stageexec.Run(cmd.Context(), stageexec.Options{
					Logger:    logger,
					Store:     store,
					Handler:   newPayeeStage(cfg, store, logger),
					StageName: "payee",
					Record:    rec,
				})
				if err != nil && !errors.Is(err, stageexec.ErrRecordFailed) {
					return err
				}

				out := cmd.OutOrStdout()
				if updated != nil {
					fmt.Fprintf(out, "Record %s is %s\n", updated.Label(), formatStatusLabel(string(updated.Status)))
				}
				if err != nil {
					return err
				}
				results, err := store.OCRResultsForRecord(cmd.Context(), rec.ID)
				if err != nil {
					return err
				}
				printOCRResults(cmd, results)
				return nil
			})
		},
	}
}
