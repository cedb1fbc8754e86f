package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CurrentSchemaVersion tracks the database schema version.
const CurrentSchemaVersion = "1.0.0"

// Migration represents a database schema migration.
type Migration struct {
	Version string
	Up      string
}

// AllMigrations contains all schema migrations in order.
var AllMigrations = []Migration{
	{Version: "1.0.0", Up: migrationV1Up},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Index-wide metadata: embedding model identity and vector dimension.
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- One row per tracked file. chunk_ids is a JSON array of the chunk
-- identifiers the file currently owns.
CREATE TABLE IF NOT EXISTS files (
    file_path TEXT PRIMARY KEY,
    content_hash BLOB NOT NULL,
    chunk_ids TEXT NOT NULL,
    last_indexed_at TIMESTAMP NOT NULL
);

-- One row per chunk. The vector is a little-endian float32 blob written
-- in the same statement as the metadata, so the two can never diverge.
CREATE TABLE IF NOT EXISTS chunks (
    chunk_id TEXT PRIMARY KEY,
    file_path TEXT NOT NULL,
    content TEXT NOT NULL,
    content_hash BLOB NOT NULL,
    chunk_type TEXT NOT NULL,
    start_line INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    language TEXT NOT NULL,
    metadata TEXT,
    vector BLOB NOT NULL,
    last_indexed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_path);
CREATE INDEX IF NOT EXISTS idx_chunks_language ON chunks(language);
`

// ApplyMigrations brings the schema up to CurrentSchemaVersion, applying
// only migrations newer than the highest recorded version.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	applied, err := appliedVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range AllMigrations {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %q: %w", m.Version, err)
		}
		if applied != nil && !v.GreaterThan(applied) {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_version (version) VALUES (?)`, m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// appliedVersion returns the highest applied schema version, or nil when
// the database is fresh.
func appliedVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var highest *semver.Version
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid recorded version %q: %w", raw, err)
		}
		if highest == nil || v.GreaterThan(highest) {
			highest = v
		}
	}
	return highest, rows.Err()
}
