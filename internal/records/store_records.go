package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"checkrecon/internal/services"
)

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", services.ErrNotFound, kind, id)
}

// InsertRecords stores new pending records in one transaction. Records whose
// account and check number already exist are skipped.
func (s *Store) InsertRecords(ctx context.Context, items []NewRecord) (inserted, skipped int, err error) {
	for i, item := range items {
		if strings.TrimSpace(item.AccountNumber) == "" || strings.TrimSpace(item.CheckNumber) == "" {
			return 0, 0, services.Wrap(services.ErrValidation, "records", "insert",
				fmt.Sprintf("item %d is missing an account or check number", i+1), nil)
		}
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		inserted, skipped = 0, 0
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (
            id, account_number, check_number, amount, issue_date, payee_1, payee_2, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (account_number, check_number) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, item := range items {
			now := formatTime(s.now())
			res, err := stmt.ExecContext(ctx,
				uuid.NewString(),
				strings.TrimSpace(item.AccountNumber),
				strings.TrimSpace(item.CheckNumber),
				nullableAmount(item.Amount),
				nullableDate(item.IssueDate),
				strings.TrimSpace(item.Payee1),
				strings.TrimSpace(item.Payee2),
				string(StatusPending),
				now,
				now,
			)
			if err != nil {
				return fmt.Errorf("insert record %s/%s: %w", item.AccountNumber, item.CheckNumber, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				skipped++
				continue
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, skipped, nil
}

// InsertRecord stores a single pending record and returns it.
func (s *Store) InsertRecord(ctx context.Context, item NewRecord) (*Record, error) {
	inserted, _, err := s.InsertRecords(ctx, []NewRecord{item})
	if err != nil {
		return nil, err
	}
	if inserted == 0 {
		return nil, services.Wrap(services.ErrValidation, "records", "insert",
			fmt.Sprintf("record %s/%s already exists", item.AccountNumber, item.CheckNumber), nil)
	}
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+recordColumns+" FROM records WHERE account_number = ? AND check_number = ?",
		strings.TrimSpace(item.AccountNumber), strings.TrimSpace(item.CheckNumber))
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("reload record: %w", err)
	}
	return rec, nil
}

// GetRecord fetches a record by id.
func (s *Store) GetRecord(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+recordColumns+" FROM records WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("record", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// RecordsByBatch returns the records claimed into batchID in creation order,
// optionally restricted to the given statuses.
func (s *Store) RecordsByBatch(ctx context.Context, batchID string, statuses ...Status) ([]*Record, error) {
	return s.ListRecords(ctx, RecordFilter{BatchID: batchID, Statuses: statuses})
}

// RecordFilter narrows ListRecords.
type RecordFilter struct {
	BatchID  string
	Statuses []Status
	Limit    int
}

// ListRecords returns records in creation order.
func (s *Store) ListRecords(ctx context.Context, filter RecordFilter) ([]*Record, error) {
	query := "SELECT " + recordColumns + " FROM records"
	var (
		clauses []string
		args    []any
	)
	if filter.BatchID != "" {
		clauses = append(clauses, "batch_id = ?")
		args = append(args, filter.BatchID)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		args = append(args, statusArgs(filter.Statuses)...)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY seq"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return collectRecords(rows)
}

// transitionTx moves a record to target inside tx after checking the
// transition table. It reports false when the record already holds target.
func (s *Store) transitionTx(ctx context.Context, tx *sql.Tx, recordID string, target Status, message string) (bool, error) {
	var current string
	err := tx.QueryRowContext(ctx, "SELECT status FROM records WHERE id = ?", recordID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, notFound("record", recordID)
	}
	if err != nil {
		return false, fmt.Errorf("read record status: %w", err)
	}
	from := Status(current)
	if !CanTransition(from, target) {
		return false, &StateError{RecordID: recordID, Have: from, Want: allowedFrom[target]}
	}
	if from == target {
		return false, nil
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE records SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(target), nullableString(message), formatTime(s.now()), recordID, current)
	if err != nil {
		return false, fmt.Errorf("update record status: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return false, &StateError{RecordID: recordID, Have: from, Want: allowedFrom[target]}
	}
	return true, nil
}

// Advance moves a record to target without attaching an artifact.
func (s *Store) Advance(ctx context.Context, recordID string, target Status) error {
	if target == StatusFailed || target == StatusPending {
		return fmt.Errorf("%w: use Fail or Requeue to move a record to %s", services.ErrInvalidState, target)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := s.transitionTx(ctx, tx, recordID, target, "")
		return err
	})
}

// Fail moves an in-flight record to the failed branch with a reason.
func (s *Store) Fail(ctx context.Context, recordID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "failed"
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := s.transitionTx(ctx, tx, recordID, StatusFailed, reason)
		return err
	})
}

// Requeue resets failed records to pending, detaching them from their batch
// and discarding the artifacts of the failed attempt. An empty ids list
// requeues every failed record.
func (s *Store) Requeue(ctx context.Context, ids ...string) (int, error) {
	var count int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		count = 0
		targets := ids
		if len(targets) == 0 {
			var err error
			if targets, err = failedIDsTx(ctx, tx); err != nil {
				return err
			}
		}
		for _, id := range targets {
			if _, err := s.transitionTx(ctx, tx, id, StatusPending, ""); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "UPDATE records SET batch_id = NULL WHERE id = ?", id); err != nil {
				return fmt.Errorf("detach record %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE record_id = ?", id); err != nil {
				return fmt.Errorf("discard artifacts of %s: %w", id, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func failedIDsTx(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM records WHERE status = ? ORDER BY seq", string(StatusFailed))
	if err != nil {
		return nil, fmt.Errorf("list failed records: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
