package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const recordColumns = "seq, id, account_number, check_number, amount, issue_date, payee_1, payee_2, status, batch_id, error_message, created_at, updated_at"

const batchColumns = "id, status, record_count, failed_records, processed_records, error_message, created_at, heartbeat_at, completed_at"

const issueDateLayout = "2006-01-02"

// timestampLayout is fixed width so stored timestamps compare correctly as
// strings in SQL.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

type rowScanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanRecord(scanner rowScanner) (*Record, error) {
	var (
		rec        Record
		status     string
		amount     decimal.NullDecimal
		issueDate  sql.NullString
		batchID    sql.NullString
		errMessage sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&rec.Seq,
		&rec.ID,
		&rec.AccountNumber,
		&rec.CheckNumber,
		&amount,
		&issueDate,
		&rec.Payee1,
		&rec.Payee2,
		&status,
		&batchID,
		&errMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	rec.Amount = amount
	rec.BatchID = batchID.String
	rec.ErrorMessage = errMessage.String
	if issueDate.Valid && issueDate.String != "" {
		if parsed, err := time.Parse(issueDateLayout, issueDate.String); err == nil {
			rec.IssueDate = &parsed
		}
	}
	rec.CreatedAt = parseTimeString(createdRaw)
	rec.UpdatedAt = parseTimeString(updatedRaw)
	return &rec, nil
}

func scanBatch(scanner rowScanner) (*Batch, error) {
	var (
		batch        Batch
		status       string
		errMessage   sql.NullString
		createdRaw   string
		heartbeatRaw sql.NullString
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&batch.ID,
		&status,
		&batch.RecordCount,
		&batch.FailedRecords,
		&batch.ProcessedRecords,
		&errMessage,
		&createdRaw,
		&heartbeatRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}
	batch.Status = BatchStatus(status)
	batch.ErrorMessage = errMessage.String
	batch.CreatedAt = parseTimeString(createdRaw)
	batch.HeartbeatAt = parseNullableTime(heartbeatRaw)
	batch.CompletedAt = parseNullableTime(completedRaw)
	return &batch, nil
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableAmount(value decimal.NullDecimal) any {
	if !value.Valid {
		return nil
	}
	return value.Decimal.StringFixed(2)
}

func nullableDate(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return value.Format(issueDateLayout)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimeString(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	return time.Time{}
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	ts := parseTimeString(value.String)
	if ts.IsZero() {
		return nil
	}
	return &ts
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}
	return args
}

func marshalJSON(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalJSON(raw sql.NullString, dst any) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), dst)
}
