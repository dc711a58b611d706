package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"checkrecon/internal/config"
	"checkrecon/internal/dataset"
	"checkrecon/internal/records"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>",
		Short: "Load check references from an XLSX or CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				result, err := dataset.Load(cmd.Context(), store, path)
				if err != nil {
					return err
				}
				printLoadResult(cmd, result)
				return nil
			})
		},
	}
}

func newSeedCommand(ctx *commandContext) *cobra.Command {
	var count int
	var seed int64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert fictitious check references for demos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				result, err := dataset.Seed(cmd.Context(), store, count, seed)
				if err != nil {
					return err
				}
				printLoadResult(cmd, result)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 25, "Number of records to generate")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Generator seed")
	return cmd
}

func printLoadResult(cmd *cobra.Command, result dataset.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Read %d row(s): %d inserted, %d already present\n", result.Rows, result.Inserted, result.Skipped)
}
