package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"checkrecon/internal/fileutil"
	"checkrecon/internal/logging"
	"checkrecon/internal/records"
	"checkrecon/internal/services"
)

const sheetName = "Mismatches"

// MismatchColumns is the header of the mismatch export.
var MismatchColumns = []string{
	"record_id",
	"account_number",
	"check_number",
	"amount",
	"issue_date",
	"payee_1",
	"payee_2",
	"best_candidate",
	"best_score",
	"best_window",
	"ocr_text",
}

// ExtractedColumns is the header of the extracted text export.
var ExtractedColumns = []string{
	"record_id",
	"account_number",
	"check_number",
	"amount",
	"issue_date",
	"file_name",
	"ocr_text",
}

// Reporter supplies joined OCR and record rows.
type Reporter interface {
	ReportRows(ctx context.Context, filter records.ReportFilter) ([]records.ReportRow, error)
}

// Exporter writes report files.
type Exporter struct {
	store  Reporter
	logger *slog.Logger
}

// NewExporter builds an exporter over store.
func NewExporter(store Reporter, logger *slog.Logger) *Exporter {
	return &Exporter{store: store, logger: logging.NewComponentLogger(logger, "export")}
}

// Mismatches writes the rows whose payee match is "no" to path, restricted
// to batchID when it is non-empty. It returns the number of data rows.
func (e *Exporter) Mismatches(ctx context.Context, path, batchID string) (int, error) {
	if e == nil || e.store == nil {
		return 0, services.Wrap(services.ErrConfiguration, "export", "mismatches", "record store unavailable", nil)
	}
	rows, err := e.store.ReportRows(ctx, records.ReportFilter{BatchID: batchID, PayeeMatch: records.PayeeMatchNo})
	if err != nil {
		return 0, err
	}
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, mismatchRow(row))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		err = fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
			return writeWorkbook(w, MismatchColumns, table)
		})
	case ".csv":
		err = fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
			return writeCSV(w, MismatchColumns, table)
		})
	default:
		return 0, services.Wrap(services.ErrValidation, "export", "mismatches",
			fmt.Sprintf("unsupported export format %q", filepath.Ext(path)), nil)
	}
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "export", "mismatches", "write "+path, err)
	}
	e.logger.Info("mismatch export written",
		logging.String(logging.FieldEventType, "export_mismatches"),
		logging.String("path", path),
		logging.String(logging.FieldBatchID, batchID),
		logging.Int("rows", len(table)),
	)
	return len(table), nil
}

// Extracted writes the recognized text of every extracted page as CSV.
func (e *Exporter) Extracted(ctx context.Context, path, batchID string) (int, error) {
	if e == nil || e.store == nil {
		return 0, services.Wrap(services.ErrConfiguration, "export", "extracted", "record store unavailable", nil)
	}
	rows, err := e.store.ReportRows(ctx, records.ReportFilter{BatchID: batchID})
	if err != nil {
		return 0, err
	}
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, extractedRow(row))
	}
	if err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return writeCSV(w, ExtractedColumns, table)
	}); err != nil {
		return 0, services.Wrap(services.ErrTransient, "export", "extracted", "write "+path, err)
	}
	e.logger.Info("extracted export written",
		logging.String(logging.FieldEventType, "export_extracted"),
		logging.String("path", path),
		logging.Int("rows", len(table)),
	)
	return len(table), nil
}

func mismatchRow(row records.ReportRow) []string {
	var candidate, score, window string
	if row.Best != nil {
		candidate = row.Best.Candidate
		score = strconv.FormatFloat(row.Best.Score, 'f', 1, 64)
		window = row.Best.Window
	}
	return []string{
		row.RecordID,
		row.AccountNumber,
		row.CheckNumber,
		formatAmount(row),
		row.IssueDate,
		row.Payee1,
		row.Payee2,
		candidate,
		score,
		window,
		row.Text,
	}
}

func extractedRow(row records.ReportRow) []string {
	fileName := ""
	if row.FilePath != "" {
		fileName = filepath.Base(row.FilePath)
	}
	return []string{
		row.RecordID,
		row.AccountNumber,
		row.CheckNumber,
		formatAmount(row),
		row.IssueDate,
		fileName,
		row.Text,
	}
}

func formatAmount(row records.ReportRow) string {
	if !row.Amount.Valid {
		return ""
	}
	return row.Amount.Decimal.StringFixed(2)
}

func writeCSV(w io.Writer, header []string, table [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(table); err != nil {
		return err
	}
	return writer.Error()
}

func writeWorkbook(w io.Writer, header []string, table [][]string) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName(book.GetSheetName(0), sheetName); err != nil {
		return err
	}
	if err := setRow(book, 1, header); err != nil {
		return err
	}
	for i, values := range table {
		if err := setRow(book, i+2, values); err != nil {
			return err
		}
	}
	_ = book.SetColWidth(sheetName, "A", "A", 38)
	_ = book.SetColWidth(sheetName, "F", "I", 28)
	_ = book.SetColWidth(sheetName, "K", "K", 60)
	return book.Write(w)
}

func setRow(book *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, value := range values {
		cells[i] = value
	}
	return book.SetSheetRow(sheetName, cell, &cells)
}
