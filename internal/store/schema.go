package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the SQLite store. seq columns keep
// insertion order, which analytics depend on for tie-breaking.
const schemaV1 = `
-- Graph-level fields: name, created_at, updated_at
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
    id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL,
    claim TEXT NOT NULL,
    domain TEXT NOT NULL,
    valence REAL,            -- NULL when the position has no valence
    level TEXT NOT NULL,
    visit_count INTEGER DEFAULT 0,
    canonical_score REAL DEFAULT 0,
    traditions TEXT,         -- JSON array
    sources TEXT,            -- JSON array
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_positions_domain ON positions(domain);

-- Edges may point at ids that are not positions (derives_from targets a tradition)
CREATE TABLE IF NOT EXISTS edges (
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    edge_type TEXT NOT NULL,
    seq INTEGER NOT NULL,
    weight REAL NOT NULL,
    evidence_count INTEGER DEFAULT 0,
    confidence REAL DEFAULT 0.5,
    co_occurrence INTEGER DEFAULT 0,
    tension REAL DEFAULT 0,
    priority_context TEXT,
    sources TEXT,            -- JSON array
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (source_id, target_id, edge_type)
);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);

CREATE TABLE IF NOT EXISTS walkers (
    session_id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL,
    user_id TEXT NOT NULL,
    path TEXT,               -- JSON array
    trajectory TEXT,         -- JSON
    canonical_fit TEXT,
    canonical_fit_score REAL DEFAULT 0,
    aberrations TEXT,        -- JSON
    prediction_errors TEXT,  -- JSON array
    edges_strengthened TEXT, -- JSON array
    edges_weakened TEXT,     -- JSON array
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_walkers_user ON walkers(user_id);

CREATE TABLE IF NOT EXISTS choices (
    session_id TEXT NOT NULL REFERENCES walkers(session_id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    position_id TEXT NOT NULL,
    question TEXT,
    accepted INTEGER NOT NULL,
    confidence REAL NOT NULL,
    reasoning TEXT,
    was_predicted INTEGER DEFAULT 0,
    prediction_confidence REAL DEFAULT 0,
    timestamp TEXT NOT NULL,
    response_time_ns INTEGER DEFAULT 0,
    PRIMARY KEY (session_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_choices_position ON choices(position_id);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema initializes the database schema.
// It creates all tables and applies migrations as needed.
// Runs integrity validation before migrations on existing databases.
func InitSchema(ctx context.Context, db *sql.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if currentVersion > SchemaVersion {
		return fmt.Errorf("database schema v%d is newer than supported v%d", currentVersion, SchemaVersion)
	}
	return nil
}

// getSchemaVersion returns the current schema version from the database.
// Returns 0 and an error if the schema_version table doesn't exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// ValidateIntegrity runs PRAGMA integrity_check and PRAGMA
// foreign_key_check and returns an error if either reports a problem.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity_check result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}

	fkRows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer fkRows.Close()

	var fkErrors []string
	for fkRows.Next() {
		var table, rowid, parent, fkid string
		if err := fkRows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%s rowid=%s parent=%s fkid=%s", table, rowid, parent, fkid))
	}

	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}
	return nil
}

// ResetSchema drops all tables and recreates the schema.
// Only use for testing.
func ResetSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"choices", "walkers", "edges", "positions", "meta", "schema_version"} {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return InitSchema(ctx, db)
}
