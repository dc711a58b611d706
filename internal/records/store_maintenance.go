package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// Stats returns the number of records per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT status, COUNT(1) FROM records GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("record stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

// HealthSummary aggregates record counts into lifecycle buckets.
type HealthSummary struct {
	Total      int
	Pending    int
	InFlight   int
	Processed  int
	Failed     int
	OpenBatch  int
	LastBatch  *Batch
	PayeeMatch map[PayeeMatch]int
}

// Health aggregates record, batch, and match counts for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	ctx = ensureContext(ctx)
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{PayeeMatch: make(map[PayeeMatch]int)}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessed:
			health.Processed += count
		case StatusFailed:
			health.Failed += count
		default:
			health.InFlight += count
		}
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM batches WHERE status IN (?, ?, ?)",
		string(BatchInProgress), string(BatchFailed), string(BatchBlocked),
	).Scan(&health.OpenBatch); err != nil {
		return HealthSummary{}, fmt.Errorf("count open batches: %w", err)
	}

	batches, err := s.ListBatches(ctx, 1)
	if err != nil {
		return HealthSummary{}, err
	}
	if len(batches) > 0 {
		health.LastBatch = batches[0]
	}

	rows, err := s.db.QueryContext(ctx, "SELECT payee_match, COUNT(1) FROM ocr_results GROUP BY payee_match")
	if err != nil {
		return HealthSummary{}, fmt.Errorf("count payee matches: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			match string
			count int
		)
		if err := rows.Scan(&match, &count); err != nil {
			return HealthSummary{}, err
		}
		health.PayeeMatch[PayeeMatch(match)] = count
	}
	return health, rows.Err()
}

// DatabaseHealth captures diagnostic information about the record database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	MissingTables    []string
	IntegrityCheck   bool
	TotalRecords     int
	Error            string
}

var expectedTables = []string{"schema_version", "batches", "records", "documents", "images", "ocr_results"}

// CheckHealth returns diagnostic information about the record database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("record database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat record database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("record database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping record database: %w", err)
	}
	health.DatabaseReadable = true

	for _, table := range expectedTables {
		var name string
		err := s.db.QueryRowContext(connCtx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			health.MissingTables = append(health.MissingTables, table)
			continue
		}
		if err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("query table %s: %w", table, err)
		}
	}
	if len(health.MissingTables) > 0 {
		return health, nil
	}

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version WHERE id = 1").Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA quick_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = integrity == "ok"

	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM records").Scan(&health.TotalRecords); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count records: %w", err)
	}
	return health, nil
}
