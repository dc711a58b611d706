package records

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// ReportRow joins one OCR result with its record for exports.
type ReportRow struct {
	RecordID      string
	AccountNumber string
	CheckNumber   string
	Amount        decimal.NullDecimal
	IssueDate     string
	Payee1        string
	Payee2        string
	Page          int
	FilePath      string
	Text          string
	PayeeMatch    PayeeMatch
	Best          *PossibleMatch
}

// ReportFilter narrows the report queries.
type ReportFilter struct {
	BatchID    string
	PayeeMatch PayeeMatch
}

// ReportRows returns OCR results joined with their records in record
// creation order, then page order.
func (s *Store) ReportRows(ctx context.Context, filter ReportFilter) ([]ReportRow, error) {
	query := `SELECT r.id, r.account_number, r.check_number, r.amount, r.issue_date, r.payee_1, r.payee_2,
            i.page, i.file_path, o.extracted_text, o.payee_match, o.best_candidate, o.best_score, o.best_window
        FROM ocr_results o
        JOIN images i ON i.id = o.image_id
        JOIN records r ON r.id = i.record_id
        WHERE 1 = 1`
	var args []any
	if filter.BatchID != "" {
		query += " AND r.batch_id = ?"
		args = append(args, filter.BatchID)
	}
	if filter.PayeeMatch != "" {
		query += " AND o.payee_match = ?"
		args = append(args, string(filter.PayeeMatch))
	}
	query += " ORDER BY r.seq, i.page, o.preprocessing_type"

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("report rows: %w", err)
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		var (
			row           ReportRow
			issueDate     sql.NullString
			filePath      sql.NullString
			payeeMatch    string
			bestCandidate sql.NullString
			bestScore     sql.NullFloat64
			bestWindow    sql.NullString
		)
		if err := rows.Scan(
			&row.RecordID, &row.AccountNumber, &row.CheckNumber, &row.Amount, &issueDate, &row.Payee1, &row.Payee2,
			&row.Page, &filePath, &row.Text, &payeeMatch, &bestCandidate, &bestScore, &bestWindow,
		); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		row.IssueDate = issueDate.String
		row.FilePath = filePath.String
		row.PayeeMatch = PayeeMatch(payeeMatch)
		if bestCandidate.Valid {
			row.Best = &PossibleMatch{Candidate: bestCandidate.String, Score: bestScore.Float64, Window: bestWindow.String}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
