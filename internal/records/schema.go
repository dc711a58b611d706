package records

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// initSchema creates the tables on first use. Statements are idempotent so
// several processes may open a fresh database at once.
func (s *Store) initSchema(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO schema_version (id, version) VALUES (1, ?)", schemaVersion,
		); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		var version int
		if err := tx.QueryRowContext(ctx, "SELECT version FROM schema_version WHERE id = 1").Scan(&version); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version != schemaVersion {
			return fmt.Errorf("%w: database has version %d, expected %d (delete the database to start over)",
				ErrSchemaMismatch, version, schemaVersion)
		}
		return nil
	})
}
