package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"checkrecon/internal/config"
	"checkrecon/internal/preflight"
	"checkrecon/internal/records"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories and the record database",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				failed := 0
				fmt.Fprintln(out, renderSectionHeader("Environment", colorize))
				for _, result := range preflight.RunAll(cmd.Context(), cfg) {
					kind := statusOK
					if !result.Passed {
						kind = statusError
						failed++
					}
					fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}

				fmt.Fprintln(out, renderSectionHeader("Database", colorize))
				for _, line := range databaseLines(cmd.Context(), store, &failed) {
					fmt.Fprintln(out, renderStatusLine(line.label, line.kind, line.message, colorize))
				}

				if failed > 0 {
					return fmt.Errorf("%d check(s) failed", failed)
				}
				fmt.Fprintln(out, "All checks passed")
				return nil
			})
		},
	}
}

type statusLine struct {
	label   string
	kind    statusKind
	message string
}

func databaseLines(ctx context.Context, store *records.Store, failed *int) []statusLine {
	health, err := store.CheckHealth(ctx)
	if err != nil {
		*failed++
		return []statusLine{{label: "Record database", kind: statusError, message: err.Error()}}
	}
	lines := []statusLine{{label: "Record database", kind: statusOK, message: health.DBPath}}
	switch {
	case len(health.MissingTables) > 0:
		*failed++
		lines = append(lines, statusLine{label: "Schema", kind: statusError,
			message: "missing tables: " + strings.Join(health.MissingTables, ", ")})
	case !health.IntegrityCheck:
		*failed++
		message := health.Error
		if message == "" {
			message = "quick_check reported problems"
		}
		lines = append(lines, statusLine{label: "Integrity", kind: statusError, message: message})
	default:
		lines = append(lines,
			statusLine{label: "Schema", kind: statusOK, message: fmt.Sprintf("version %d", health.SchemaVersion)},
			statusLine{label: "Records", kind: statusInfo, message: fmt.Sprintf("%d", health.TotalRecords)},
		)
	}
	return lines
}
