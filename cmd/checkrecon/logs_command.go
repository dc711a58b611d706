package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"checkrecon/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var followFlag bool
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the configured log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(cfg.Logging.File)
			if path == "" {
				return errors.New("no log file configured; set logging.file")
			}

			out := cmd.OutOrStdout()
			result, err := logs.Tail(cmd.Context(), path, logs.Options{Offset: -1, Limit: lines, Filter: filter})
			if err != nil {
				return err
			}
			for _, line := range result.Lines {
				fmt.Fprintln(out, line)
			}
			if !followFlag {
				return nil
			}

			offset := result.Offset
			for {
				next, err := logs.Tail(cmd.Context(), path, logs.Options{
					Offset: offset,
					Follow: true,
					Wait:   5 * time.Second,
					Filter: filter,
				})
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				for _, line := range next.Lines {
					fmt.Fprintln(out, line)
				}
				offset = next.Offset
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&followFlag, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&filter.BatchID, "batch", "", "Only lines for this batch")
	cmd.Flags().StringVar(&filter.RecordID, "record", "", "Only lines for this record")
	cmd.Flags().StringVar(&filter.EventType, "event", "", "Only lines with this event_type")
	return cmd
}
