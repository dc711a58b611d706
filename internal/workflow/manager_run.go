package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"checkrecon/internal/logging"
	"checkrecon/internal/preflight"
)

// Preflight runs the readiness checks that gate the polling loop.
func (m *Manager) Preflight(ctx context.Context) error {
	results := preflight.RunAll(ctx, m.cfg)
	for _, r := range results {
		if r.Passed {
			m.logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		m.logger.Error("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported issue and restart"),
		)
	}
	return preflight.Err(results)
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.loop(runCtx)
	return nil
}

// Stop terminates background processing and waits for the active batch to
// observe cancellation.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Run processes batches until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	m.Stop()
	return nil
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String("component", "workflow-runner"))

	for {
		if ctx.Err() != nil {
			return
		}

		adopted, err := m.heartbeat.AdoptStale(ctx, logger)
		if err != nil {
			m.handleLoopError(ctx, logger, "adopt stale batches", err)
			continue
		}
		for _, batch := range adopted {
			if _, err := m.processBatch(ctx, batch, true); err != nil && ctx.Err() == nil {
				logger.Warn("resumed batch did not finish", logging.Error(err),
					logging.String(logging.FieldBatchID, batch.ID))
			}
		}

		pending, err := m.pendingCount(ctx)
		if err != nil {
			m.handleLoopError(ctx, logger, "count pending records", err)
			continue
		}
		if pending == 0 {
			m.wait(ctx, m.pollInterval)
			continue
		}
		if _, err := m.RunBatch(ctx); err != nil {
			m.handleLoopError(ctx, logger, "run batch", err)
		}
	}
}

func (m *Manager) handleLoopError(ctx context.Context, logger *slog.Logger, op string, err error) {
	if ctx.Err() != nil {
		return
	}
	m.setLastError(err)
	logger.Error("workflow step failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldEventType, "workflow_error"),
		logging.String(logging.FieldErrorHint, "check record database access"),
	)
	m.wait(ctx, m.pollInterval)
}

func (m *Manager) wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
