package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"checkrecon/internal/records"
)

// renderTable lays rows out under headers. Columns listed in numeric are
// right aligned; their numbers are zero based.
func renderTable(headers []string, rows [][]string, numeric ...int) string {
	if len(headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	right := make(map[int]bool, len(numeric))
	for _, col := range numeric {
		right[col] = true
	}
	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if right[i] {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func formatStatusLabel(status string) string {
	parts := strings.Split(strings.TrimSpace(status), "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func buildStatusRows(stats map[records.Status]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range records.AllStatuses() {
		count, ok := stats[status]
		if !ok {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(string(status)), fmt.Sprintf("%d", count)})
	}
	return rows
}

func buildBatchRows(batches []*records.Batch) [][]string {
	rows := make([][]string, 0, len(batches))
	for _, b := range batches {
		created := b.CreatedAt
		rows = append(rows, []string{
			b.ID,
			formatStatusLabel(string(b.Status)),
			fmt.Sprintf("%d", b.RecordCount),
			fmt.Sprintf("%d", b.ProcessedRecords),
			fmt.Sprintf("%d", b.FailedRecords),
			formatDisplayTime(&created),
			formatDisplayTime(b.HeartbeatAt),
		})
	}
	return rows
}

func buildRecordRows(recs []*records.Record) [][]string {
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, []string{
			rec.ID,
			rec.AccountNumber,
			rec.CheckNumber,
			strings.Join(rec.Candidates(), " / "),
			formatStatusLabel(string(rec.Status)),
			shortID(rec.BatchID),
			rec.ErrorMessage,
		})
	}
	return rows
}
