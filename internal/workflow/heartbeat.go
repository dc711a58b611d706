package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"checkrecon/internal/logging"
	"checkrecon/internal/records"
)

// HeartbeatMonitor keeps the active batch's heartbeat fresh and finds
// batches abandoned by other workers.
type HeartbeatMonitor struct {
	store             *records.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *records.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             store,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// AdoptStale claims every unfinished batch whose heartbeat is older than the
// timeout and returns the ones this worker now owns.
func (h *HeartbeatMonitor) AdoptStale(ctx context.Context, logger *slog.Logger) ([]*records.Batch, error) {
	if h.heartbeatTimeout <= 0 {
		return nil, nil
	}
	cutoff := time.Now().Add(-h.heartbeatTimeout)
	stale, err := h.store.StaleBatches(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	adopted := make([]*records.Batch, 0, len(stale))
	for _, batch := range stale {
		ok, err := h.store.AdoptBatch(ctx, batch.ID, cutoff)
		if err != nil {
			return adopted, err
		}
		if !ok {
			continue
		}
		logger.Info("adopted stale batch",
			logging.String(logging.FieldEventType, "batch_adopted"),
			logging.String(logging.FieldBatchID, batch.ID),
			logging.String("previous_status", string(batch.Status)),
		)
		adopted = append(adopted, batch)
	}
	return adopted, nil
}

// StartLoop refreshes a batch heartbeat until context cancellation.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, batchID string) {
	defer wg.Done()
	if h.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String("component", "workflow-heartbeat")))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.TouchBatch(ctx, batchID); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("heartbeat update cancelled")
				} else {
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}
}
