package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"checkrecon/internal/logging"
	"checkrecon/internal/records"
	"checkrecon/internal/services"
	"checkrecon/internal/stage"
)

// Options controls one stage execution for one record.
type Options struct {
	Logger    *slog.Logger
	Store     *records.Store
	Handler   stage.Handler
	StageName string
	Record    *records.Record
}

// ErrRecordFailed marks a stage error that moved the record to failed.
var ErrRecordFailed = errors.New("record failed")

// Run executes a stage against a record and returns the record as stored
// afterwards. Record-level errors fail the record and come back wrapped with
// ErrRecordFailed. Ordering errors and cancellation leave the record where
// it is.
func Run(ctx context.Context, opts Options) (*records.Record, error) {
	if opts.Handler == nil {
		return nil, fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if opts.Record == nil {
		return nil, fmt.Errorf("record is required")
	}
	rec := opts.Record

	stageCtx := services.WithStage(services.WithRecordID(ctx, rec.ID), opts.StageName)
	stageCtx = services.WithBatchID(stageCtx, rec.BatchID)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	stageLogger.Debug(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("status", string(rec.Status)),
		logging.String("check", rec.Label()),
	)

	if err := opts.Handler.Prepare(stageCtx, rec); err != nil {
		return rec, handleFailure(stageCtx, stageLogger, opts.Store, opts.StageName, rec, err)
	}
	if err := opts.Handler.Execute(stageCtx, rec); err != nil {
		return rec, handleFailure(stageCtx, stageLogger, opts.Store, opts.StageName, rec, err)
	}

	updated, err := opts.Store.GetRecord(stageCtx, rec.ID)
	if err != nil {
		return rec, fmt.Errorf("reload record after %s: %w", opts.StageName, err)
	}
	stageLogger.Debug(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(updated.Status)),
	)
	return updated, nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, store *records.Store, stageName string, rec *records.Record, stageErr error) error {
	if ctx.Err() != nil {
		logger.Info("stage interrupted",
			logging.String(logging.FieldEventType, "stage_interrupted"),
			logging.Error(stageErr),
		)
		return stageErr
	}
	if !services.IsRecordFailure(stageErr) {
		logging.WarnWithContext(logger, "stage skipped", "stage_skipped",
			append(logging.ErrorAttrs(stageErr),
				logging.String(logging.FieldErrorHint, "record is not in the status this stage expects"),
				logging.String("status", string(rec.Status)),
			)...,
		)
		return stageErr
	}

	message := failureMessage(stageName, stageErr)
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		append(logging.ErrorAttrs(stageErr),
			logging.String("resolved_status", string(records.StatusFailed)),
			logging.String("error_message", message),
		)...,
	)
	if err := store.Fail(ctx, rec.ID, message); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
		return errors.Join(stageErr, err)
	}
	rec.Status = records.StatusFailed
	rec.ErrorMessage = message
	return fmt.Errorf("%w: %w", ErrRecordFailed, stageErr)
}

// failureMessage is the text stored on a failed record.
func failureMessage(stageName string, err error) string {
	if errors.Is(err, services.ErrNoCandidates) {
		return fmt.Sprintf("%s: %s", stageName, services.ErrNoCandidates)
	}
	details := services.Details(err)
	message := strings.TrimSpace(details.Message)
	if hint := strings.TrimSpace(details.Hint); hint != "" && !strings.Contains(message, hint) {
		message = message + ": " + hint
	}
	if message == "" {
		message = "stage failed"
	}
	return fmt.Sprintf("%s: %s", stageName, message)
}
