package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"checkrecon/internal/records"
	"checkrecon/internal/services"
)

// Column names expected in the header row.
const (
	ColumnAccount = "AcctNumber"
	ColumnCheck   = "CheckNumber"
	ColumnAmount  = "Amount"
	ColumnDate    = "Date"
	ColumnPayee   = "Payee"
	ColumnPayee2  = "Payee2"
)

var requiredColumns = []string{ColumnAccount, ColumnCheck, ColumnPayee}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1/2/2006",
	"2006/01/02",
	"20060102",
}

// Inserter stores parsed records, reporting how many were new.
type Inserter interface {
	InsertRecords(ctx context.Context, items []records.NewRecord) (inserted, skipped int, err error)
}

// Result summarizes one load.
type Result struct {
	Rows     int
	Inserted int
	Skipped  int
}

// Load parses the file at path and inserts its rows. Rows whose account and
// check number already exist are counted as skipped.
func Load(ctx context.Context, store Inserter, path string) (Result, error) {
	if store == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "dataset", "load", "record store unavailable", nil)
	}
	items, err := ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	inserted, skipped, err := store.InsertRecords(ctx, items)
	if err != nil {
		return Result{}, fmt.Errorf("insert dataset rows: %w", err)
	}
	return Result{Rows: len(items), Inserted: inserted, Skipped: skipped}, nil
}

// ReadFile parses path as XLSX or CSV according to its extension.
func ReadFile(path string) ([]records.NewRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err := readWorkbook(path)
		if err != nil {
			return nil, err
		}
		return parseRows(rows)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	default:
		return nil, services.Wrap(services.ErrValidation, "dataset", "read",
			fmt.Sprintf("unsupported dataset format %q", filepath.Ext(path)), nil)
	}
}

// ReadCSV parses CSV input with a header row.
func ReadCSV(r io.Reader) ([]records.NewRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "dataset", "read", "malformed CSV", err)
	}
	return parseRows(rows)
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, services.Wrap(services.ErrValidation, "dataset", "read", "workbook has no sheets", nil)
	}
	// Raw values keep dates as serial numbers instead of locale formatted text.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// parseRows maps the header row and converts each data row. Row numbers in
// errors count the header as row 1, matching spreadsheet numbering.
func parseRows(rows [][]string) ([]records.NewRecord, error) {
	if len(rows) == 0 {
		return nil, services.Wrap(services.ErrValidation, "dataset", "read", "dataset is empty", nil)
	}
	index := headerIndex(rows[0])
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := index[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, services.Wrap(services.ErrValidation, "dataset", "read",
			"missing column(s) "+strings.Join(missing, ", "), nil)
	}

	out := make([]records.NewRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		item, err := parseRow(index, row)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "dataset", "read", fmt.Sprintf("row %d", i+2), err)
		}
		out = append(out, item)
	}
	return out, nil
}

func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if key == "" {
			continue
		}
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}
	return index
}

func parseRow(index map[string]int, row []string) (records.NewRecord, error) {
	cell := func(name string) string {
		pos, ok := index[strings.ToLower(name)]
		if !ok || pos >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[pos])
	}

	item := records.NewRecord{
		AccountNumber: cell(ColumnAccount),
		CheckNumber:   cell(ColumnCheck),
		Payee1:        cell(ColumnPayee),
		Payee2:        cell(ColumnPayee2),
	}
	if item.AccountNumber == "" || item.CheckNumber == "" {
		return records.NewRecord{}, errors.New("account and check number are required")
	}
	if raw := cell(ColumnAmount); raw != "" {
		amount, err := ParseAmount(raw)
		if err != nil {
			return records.NewRecord{}, err
		}
		item.Amount = decimal.NewNullDecimal(amount)
	}
	if raw := cell(ColumnDate); raw != "" {
		date, err := ParseDate(raw)
		if err != nil {
			return records.NewRecord{}, err
		}
		item.IssueDate = &date
	}
	return item, nil
}

// ParseAmount accepts plain decimals with an optional currency sign and
// thousands separators.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(raw))
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", raw)
	}
	return amount.Round(2), nil
}

// ParseDate accepts ISO and US style dates as well as spreadsheet serial
// numbers. The result is a UTC calendar date.
func ParseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return calendarDate(parsed), nil
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 {
		if parsed, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return calendarDate(parsed), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func blankRow(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
