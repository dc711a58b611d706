package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"checkrecon/internal/services"
)

// ClaimBatch creates an in_progress batch and claims up to limit pending
// records into it in creation order. Selection and status update run as one
// transaction under the claim lock, so concurrent callers never receive
// overlapping records. An empty claim still creates the batch.
func (s *Store) ClaimBatch(ctx context.Context, limit int) (*Batch, []*Record, error) {
	if limit < 0 {
		return nil, nil, services.Wrap(services.ErrValidation, "batch", "claim",
			fmt.Sprintf("limit must be non-negative, got %d", limit), nil)
	}
	ctx = ensureContext(ctx)

	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	if s.claimLock != nil {
		locked, err := s.claimLock.TryLockContext(ctx, claimLockRetryDelay)
		if err != nil {
			return nil, nil, fmt.Errorf("acquire claim lock: %w", err)
		}
		if !locked {
			return nil, nil, fmt.Errorf("acquire claim lock: %s is held", s.claimLock.Path())
		}
		defer func() { _ = s.claimLock.Unlock() }()
	}

	var (
		batch   *Batch
		claimed []*Record
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		batch, claimed, err = s.claimTx(ctx, tx, limit)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("claim batch: %w", err)
	}
	return batch, claimed, nil
}

func (s *Store) claimTx(ctx context.Context, tx *sql.Tx, limit int) (*Batch, []*Record, error) {
	now := s.now()
	batch := &Batch{
		ID:          uuid.NewString(),
		Status:      BatchInProgress,
		CreatedAt:   now,
		HeartbeatAt: &now,
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO batches (id, status, record_count, failed_records, processed_records, created_at, heartbeat_at) VALUES (?, ?, 0, 0, 0, ?, ?)",
		batch.ID, string(batch.Status), formatTime(now), formatTime(now),
	); err != nil {
		return nil, nil, fmt.Errorf("insert batch: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE status = ? ORDER BY seq LIMIT ?",
		string(StatusPending), limit)
	if err != nil {
		return nil, nil, fmt.Errorf("select pending records: %w", err)
	}
	claimed, err := collectRecords(rows)
	if err != nil {
		return nil, nil, err
	}

	stamp := formatTime(now)
	for _, rec := range claimed {
		res, err := tx.ExecContext(ctx,
			"UPDATE records SET status = ?, batch_id = ?, error_message = NULL, updated_at = ? WHERE id = ? AND status = ?",
			string(StatusInProgress), batch.ID, stamp, rec.ID, string(StatusPending))
		if err != nil {
			return nil, nil, fmt.Errorf("claim record %s: %w", rec.ID, err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return nil, nil, &StateError{RecordID: rec.ID, Have: "", Want: []Status{StatusPending}}
		}
		rec.Status = StatusInProgress
		rec.BatchID = batch.ID
		rec.ErrorMessage = ""
		rec.UpdatedAt = now
	}

	if len(claimed) > 0 {
		if _, err := tx.ExecContext(ctx, "UPDATE batches SET record_count = ? WHERE id = ?", len(claimed), batch.ID); err != nil {
			return nil, nil, fmt.Errorf("update batch size: %w", err)
		}
	}
	batch.RecordCount = len(claimed)
	return batch, claimed, nil
}

// CompleteBatch marks a batch completed once every claimed record is
// terminal. Counts are taken once; completing an already completed batch
// returns the stored counts even if its records were requeued since.
// Completion does not imply success.
func (s *Store) CompleteBatch(ctx context.Context, batchID string) (*Batch, error) {
	var batch *Batch
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getBatchTx(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if existing.Status == BatchCompleted {
			batch = existing
			return nil
		}

		var total, failed, processed int
		if err := tx.QueryRowContext(ctx, `SELECT
                COUNT(1),
                COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
                COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
            FROM records WHERE batch_id = ?`,
			string(StatusFailed), string(StatusProcessed), batchID,
		).Scan(&total, &failed, &processed); err != nil {
			return fmt.Errorf("count batch records: %w", err)
		}
		if open := total - failed - processed; open > 0 {
			return services.Wrap(services.ErrInvalidState, "batch", "complete",
				fmt.Sprintf("batch %s still has %d records in flight", batchID, open), nil)
		}

		now := formatTime(s.now())
		if _, err := tx.ExecContext(ctx, `UPDATE batches
            SET status = ?, failed_records = ?, processed_records = ?, error_message = NULL,
                completed_at = ?, heartbeat_at = ?
            WHERE id = ?`,
			string(BatchCompleted), failed, processed, now, now, batchID,
		); err != nil {
			return fmt.Errorf("complete batch: %w", err)
		}

		batch, err = getBatchTx(ctx, tx, batchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// FailBatch records a batch-level failure such as an unavailable document
// source. Records keep their statuses so the batch can be resumed.
func (s *Store) FailBatch(ctx context.Context, batchID, reason string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE batches SET status = ?, error_message = ?, heartbeat_at = ? WHERE id = ? AND status IN (?, ?)",
		string(BatchFailed), nullableString(reason), formatTime(s.now()), batchID,
		string(BatchPending), string(BatchInProgress))
	if err != nil {
		return fmt.Errorf("fail batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetBatch(ctx, batchID); err != nil {
			return err
		}
		return services.Wrap(services.ErrInvalidState, "batch", "fail",
			fmt.Sprintf("batch %s is not active", batchID), nil)
	}
	return nil
}

// BlockBatch parks an active batch whose remaining records cannot be moved
// by any stage. A blocked batch keeps its records and is left out of stale
// adoption until it is resumed explicitly.
func (s *Store) BlockBatch(ctx context.Context, batchID, reason string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE batches SET status = ?, error_message = ?, heartbeat_at = ? WHERE id = ? AND status = ?",
		string(BatchBlocked), nullableString(reason), formatTime(s.now()), batchID, string(BatchInProgress))
	if err != nil {
		return fmt.Errorf("block batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetBatch(ctx, batchID); err != nil {
			return err
		}
		return services.Wrap(services.ErrInvalidState, "batch", "block",
			fmt.Sprintf("batch %s is not in progress", batchID), nil)
	}
	return nil
}

// TouchBatch refreshes the heartbeat of an active batch.
func (s *Store) TouchBatch(ctx context.Context, batchID string) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE batches SET heartbeat_at = ? WHERE id = ? AND status = ?",
		formatTime(s.now()), batchID, string(BatchInProgress))
	if err != nil {
		return fmt.Errorf("touch batch: %w", err)
	}
	return nil
}

// AdoptBatch takes ownership of an unfinished batch for resumption. When
// staleBefore is non-zero, only an in-progress or failed batch whose
// heartbeat is older than it is adopted, so two workers never resume the same
// abandoned batch. A zero staleBefore is an explicit resume and also accepts
// blocked batches. It reports whether the batch was adopted.
func (s *Store) AdoptBatch(ctx context.Context, batchID string, staleBefore time.Time) (bool, error) {
	var query string
	var args []any
	if staleBefore.IsZero() {
		query = "UPDATE batches SET status = ?, error_message = NULL, heartbeat_at = ? WHERE id = ? AND status IN (?, ?, ?)"
		args = []any{string(BatchInProgress), formatTime(s.now()), batchID,
			string(BatchInProgress), string(BatchFailed), string(BatchBlocked)}
	} else {
		query = `UPDATE batches SET status = ?, error_message = NULL, heartbeat_at = ? WHERE id = ? AND status IN (?, ?)
            AND (heartbeat_at IS NULL OR heartbeat_at < ?)`
		args = []any{string(BatchInProgress), formatTime(s.now()), batchID,
			string(BatchInProgress), string(BatchFailed), formatTime(staleBefore)}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("adopt batch: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		batch, err := s.GetBatch(ctx, batchID)
		if err != nil {
			return false, err
		}
		if batch.Status == BatchCompleted {
			return false, services.Wrap(services.ErrInvalidState, "batch", "adopt",
				fmt.Sprintf("batch %s is already completed", batchID), nil)
		}
		return false, nil
	}
	return true, nil
}

// StaleBatches lists unfinished batches whose heartbeat is older than cutoff,
// oldest first.
func (s *Store) StaleBatches(ctx context.Context, cutoff time.Time) ([]*Batch, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+batchColumns+" FROM batches WHERE status IN (?, ?) AND (heartbeat_at IS NULL OR heartbeat_at < ?) ORDER BY created_at",
		string(BatchInProgress), string(BatchFailed), formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list stale batches: %w", err)
	}
	return collectBatches(rows)
}

// GetBatch fetches a batch by id.
func (s *Store) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	return getBatchTx(ensureContext(ctx), s.db, batchID)
}

// ListBatches returns the most recent batches first.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]*Batch, error) {
	query := "SELECT " + batchColumns + " FROM batches ORDER BY created_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return collectBatches(rows)
}

func getBatchTx(ctx context.Context, tx querier, batchID string) (*Batch, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+batchColumns+" FROM batches WHERE id = ?", batchID)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("batch", batchID)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

func collectBatches(rows *sql.Rows) ([]*Batch, error) {
	defer rows.Close()
	var out []*Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, batch)
	}
	return out, rows.Err()
}

// BatchSummary returns the number of records per status in a batch.
func (s *Store) BatchSummary(ctx context.Context, batchID string) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(1) FROM records WHERE batch_id = ? GROUP BY status", batchID)
	if err != nil {
		return nil, fmt.Errorf("batch summary: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}
