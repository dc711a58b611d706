package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"checkrecon/internal/logging"
	"checkrecon/internal/notifications"
	"checkrecon/internal/records"
	"checkrecon/internal/services"
	"checkrecon/internal/stage"
	"checkrecon/internal/stageexec"
)

// RunBatch claims up to batch.size pending records and processes them to
// completion. An empty claim still produces a completed batch with no
// records.
func (m *Manager) RunBatch(ctx context.Context) (Report, error) {
	batch, claimed, err := m.store.ClaimBatch(ctx, m.cfg.Batch.Size)
	if err != nil {
		m.setLastError(err)
		return Report{}, err
	}
	logging.WithContext(services.WithBatchID(ctx, batch.ID), m.logger).Info("batch claimed",
		logging.String(logging.FieldEventType, "batch_claimed"),
		logging.Int("records", len(claimed)),
	)
	return m.processBatch(ctx, batch, false)
}

// ResumeBatch adopts an unfinished batch and continues each of its records
// from the status it was left in.
func (m *Manager) ResumeBatch(ctx context.Context, batchID string) (Report, error) {
	adopted, err := m.store.AdoptBatch(ctx, batchID, time.Time{})
	if err != nil {
		return Report{BatchID: batchID}, err
	}
	if !adopted {
		return Report{BatchID: batchID}, services.Wrap(services.ErrInvalidState, "workflow", "resume",
			fmt.Sprintf("batch %s cannot be resumed", batchID), nil)
	}
	batch, err := m.store.GetBatch(ctx, batchID)
	if err != nil {
		return Report{BatchID: batchID}, err
	}
	return m.processBatch(ctx, batch, true)
}

// Drain runs batches until no records are pending. maxBatches bounds the
// number of batches when positive.
func (m *Manager) Drain(ctx context.Context, maxBatches int) ([]Report, error) {
	var reports []Report
	for maxBatches <= 0 || len(reports) < maxBatches {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		pending, err := m.pendingCount(ctx)
		if err != nil {
			return reports, err
		}
		if pending == 0 {
			break
		}
		report, err := m.RunBatch(ctx)
		if report.BatchID != "" {
			reports = append(reports, report)
		}
		if err != nil {
			return reports, err
		}
		if report.Claimed == 0 {
			break
		}
	}
	return reports, nil
}

func (m *Manager) pendingCount(ctx context.Context) (int, error) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats[records.StatusPending], nil
}

func (m *Manager) processBatch(ctx context.Context, batch *records.Batch, resumed bool) (Report, error) {
	stages := m.stageList()
	report := Report{BatchID: batch.ID, Resumed: resumed, Claimed: batch.RecordCount}
	if len(stages) == 0 {
		return report, errors.New("workflow stages not configured")
	}

	start := time.Now()
	ctx = services.WithBatchID(ctx, batch.ID)
	logger := logging.WithContext(ctx, m.logger)

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, batch.ID)
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()

	if batch.RecordCount > 0 {
		end, err := m.beginScoped(ctx, logger, stages, batch)
		if err != nil {
			m.failBatch(ctx, logger, batch.ID, err)
			return report, err
		}
		defer end()
	}

	for _, stg := range stages {
		skipped, err := m.runStage(ctx, stg, batch.ID)
		report.Skipped += skipped
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("batch interrupted",
					logging.String(logging.FieldEventType, "batch_interrupted"),
					logging.String(logging.FieldStage, stg.name),
				)
				return report, ctx.Err()
			}
			m.setLastError(err)
			return report, err
		}
	}

	completed, err := m.store.CompleteBatch(ctx, batch.ID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidState) {
			reason := services.Details(err).Message
			if blockErr := m.store.BlockBatch(ctx, batch.ID, reason); blockErr != nil {
				logger.Error("failed to block batch", logging.Error(blockErr))
			}
			logging.WarnWithContext(logger, "batch blocked", "batch_blocked",
				logging.Error(err),
				logging.Int("skipped", report.Skipped),
				logging.String(logging.FieldErrorHint, "inspect the batch with 'checkrecon batch show', fix or fail its records, then resume it"),
			)
			report.Duration = time.Since(start)
			m.setLastReport(report)
			return report, nil
		}
		m.setLastError(err)
		return report, err
	}

	report.Processed = completed.ProcessedRecords
	report.Failed = completed.FailedRecords
	report.Completed = true
	report.Duration = time.Since(start)
	m.setLastReport(report)

	logger.Info("batch completed",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("claimed", report.Claimed),
		logging.Int("processed", report.Processed),
		logging.Int("failed", report.Failed),
		logging.Int("skipped", report.Skipped),
		logging.Duration("duration", report.Duration),
	)
	if report.Claimed > 0 {
		m.notify(ctx, logger, func(ctx context.Context) error {
			return m.notifier.NotifyBatchCompleted(ctx, notifications.BatchSummary{
				BatchID:   report.BatchID,
				Claimed:   report.Claimed,
				Processed: report.Processed,
				Failed:    report.Failed,
				Duration:  report.Duration,
			})
		})
	}
	return report, nil
}

// runStage applies one stage to every record of the batch waiting for it.
// It returns how many records were skipped for being in the wrong status.
func (m *Manager) runStage(ctx context.Context, stg pipelineStage, batchID string) (int, error) {
	recs, err := m.store.RecordsByBatch(ctx, batchID, stg.startStatus())
	if err != nil {
		return 0, fmt.Errorf("select records for %s: %w", stg.name, err)
	}
	skipped := 0
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return skipped, err
		}
		_, err := stageexec.Run(ctx, stageexec.Options{
			Logger:    m.logger,
			Store:     m.store,
			Handler:   stg.handler,
			StageName: stg.name,
			Record:    rec,
		})
		switch {
		case err == nil, errors.Is(err, stageexec.ErrRecordFailed):
		case errors.Is(err, services.ErrInvalidState):
			skipped++
		default:
			return skipped, err
		}
	}
	return skipped, nil
}

// beginScoped opens batch-scoped stage resources and returns a func that
// releases them.
func (m *Manager) beginScoped(ctx context.Context, logger *slog.Logger, stages []pipelineStage, batch *records.Batch) (func(), error) {
	var opened []stage.BatchScoped
	end := func() {
		for i := len(opened) - 1; i >= 0; i-- {
			if err := opened[i].EndBatch(ctx); err != nil {
				logger.Warn("failed to release batch resource", logging.Error(err))
			}
		}
	}
	for _, stg := range stages {
		scoped, ok := stg.handler.(stage.BatchScoped)
		if !ok {
			continue
		}
		if aware, ok := stg.handler.(stage.LoggerAware); ok {
			aware.SetLogger(logger)
		}
		if err := scoped.BeginBatch(ctx, batch); err != nil {
			end()
			return func() {}, err
		}
		opened = append(opened, scoped)
	}
	return end, nil
}

func (m *Manager) failBatch(ctx context.Context, logger *slog.Logger, batchID string, cause error) {
	m.setLastError(cause)
	reason := services.Details(cause).Message
	logging.ErrorWithContext(logger, "batch failed", "batch_failed", logging.ErrorAttrs(cause)...)
	if err := m.store.FailBatch(ctx, batchID, reason); err != nil {
		logger.Error("failed to persist batch failure", logging.Error(err))
	}
	m.notify(ctx, logger, func(ctx context.Context) error {
		return m.notifier.NotifyBatchFailed(ctx, batchID, reason)
	})
}

func (m *Manager) notify(ctx context.Context, logger *slog.Logger, send func(context.Context) error) {
	if m.notifier == nil {
		return
	}
	if err := send(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, notification not sent")
			return
		}
		logger.Debug("notification failed", logging.Error(err))
	}
}
