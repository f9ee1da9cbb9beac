package store

import (
	"database/sql"
	"fmt"
	"time"

	"mcpstat/internal/logging"
)

// Schema versions:
// v1: usage table with name/type/call_count/last_accessed/created_at plus
//     the metadata table (original layout)
// v2: token and latency columns on the usage table
const CurrentSchemaVersion = 2

// migration describes one additive column change. Columns are only ever
// added, never dropped or rewritten, so existing data survives upgrades.
type migration struct {
	table  string
	column string
	def    string
}

// v1->v2: token accounting and latency rollup columns. Numeric columns
// default to 0; min/max stay NULL until the first duration-bearing record.
var v2Migrations = []migration{
	{usageTable, "total_input_tokens", "INTEGER NOT NULL DEFAULT 0"},
	{usageTable, "total_output_tokens", "INTEGER NOT NULL DEFAULT 0"},
	{usageTable, "total_response_chars", "INTEGER NOT NULL DEFAULT 0"},
	{usageTable, "estimated_tokens", "INTEGER NOT NULL DEFAULT 0"},
	{usageTable, "total_duration_ms", "INTEGER NOT NULL DEFAULT 0"},
	{usageTable, "min_duration_ms", "INTEGER"},
	{usageTable, "max_duration_ms", "INTEGER"},
}

// EnsureSchema creates or upgrades the schema to CurrentSchemaVersion.
// Idempotent and safe to call from concurrent initializers: the store mutex
// serializes callers and every step re-checks before acting, so exactly one
// migration executes and nobody observes a partial schema.
func (s *Store) EnsureSchema() error {
	timer := logging.StartTimer(logging.CategoryStore, "EnsureSchema")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("ensure_schema"); err != nil {
		return err
	}

	current := schemaVersion(s.db)
	logging.StoreDebug("Schema version detected: v%d (target v%d)", current, CurrentSchemaVersion)

	if current > CurrentSchemaVersion {
		return &MigrationError{
			FromVersion: current,
			ToVersion:   CurrentSchemaVersion,
			Err:         fmt.Errorf("database schema is newer than this build understands"),
		}
	}

	if err := s.createTables(); err != nil {
		return &MigrationError{FromVersion: current, ToVersion: CurrentSchemaVersion, Err: err}
	}

	if current < 2 {
		if err := s.migrateToV2(); err != nil {
			return &MigrationError{FromVersion: current, ToVersion: 2, Err: err}
		}
	}

	if current < CurrentSchemaVersion {
		if err := setSchemaVersion(s.db, CurrentSchemaVersion); err != nil {
			return &MigrationError{FromVersion: current, ToVersion: CurrentSchemaVersion, Err: err}
		}
		logging.Store("Schema migrated: v%d -> v%d", current, CurrentSchemaVersion)
	}

	return nil
}

// createTables creates the base (v1-shaped) tables and indexes if absent.
// New databases then pick up the v2 columns through the same ALTER path as
// upgraded ones, keeping both layouts byte-for-byte identical.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ` + usageTable + ` (
		name TEXT PRIMARY KEY,
		type TEXT NOT NULL DEFAULT 'tool',
		call_count INTEGER NOT NULL DEFAULT 0,
		last_accessed TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ` + metadataTable + ` (
		name TEXT PRIMARY KEY,
		tags TEXT NOT NULL DEFAULT '',
		short_description TEXT NOT NULL DEFAULT '',
		full_description TEXT DEFAULT '',
		schema_version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_mcpstat_usage_type ON ` + usageTable + `(type);
	CREATE INDEX IF NOT EXISTS idx_mcpstat_usage_count ON ` + usageTable + `(call_count DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// migrateToV2 adds the token/latency columns. Each column is probed first so
// a re-run (or a concurrent initializer that lost the race) skips cleanly.
func (s *Store) migrateToV2() error {
	applied := 0
	for _, m := range v2Migrations {
		if columnExists(s.db, m.table, m.column) {
			logging.StoreDebug("Column already exists, skipping: %s.%s", m.table, m.column)
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.table, m.column, m.def)
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", m.table, m.column, err)
		}
		applied++
	}
	if applied > 0 {
		logging.Store("v2 migration applied: %d columns added", applied)
	}
	return nil
}

// schemaVersion returns the recorded schema version, inferring it from the
// table structure when no marker row exists yet.
func schemaVersion(db *sql.DB) int {
	if tableExists(db, schemaTable) {
		var version int
		query := "SELECT version FROM " + schemaTable + " ORDER BY applied_at DESC, version DESC LIMIT 1"
		if err := db.QueryRow(query).Scan(&version); err == nil {
			return version
		}
	}

	// Infer from structure: pre-marker databases are v1 if the usage table
	// exists without token columns, v2 if the columns are present.
	if !tableExists(db, usageTable) {
		return 0
	}
	if columnExists(db, usageTable, "estimated_tokens") {
		return 2
	}
	return 1
}

// setSchemaVersion records a new schema version in the marker table.
func setSchemaVersion(db *sql.DB, version int) error {
	createTable := `
	CREATE TABLE IF NOT EXISTS ` + schemaTable + ` (
		version INTEGER NOT NULL,
		applied_at TEXT NOT NULL,
		description TEXT
	)`
	if _, err := db.Exec(createTable); err != nil {
		return fmt.Errorf("failed to create schema marker table: %w", err)
	}

	_, err := db.Exec(
		"INSERT INTO "+schemaTable+" (version, applied_at, description) VALUES (?, ?, ?)",
		version, formatTime(time.Now()), fmt.Sprintf("Migrated to schema version %d", version),
	)
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// columnExists checks if a column exists using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// tableExists checks if a table exists in the database.
func tableExists(db *sql.DB, table string) bool {
	var count int
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
	if err := db.QueryRow(query, table).Scan(&count); err != nil {
		return false
	}
	return count > 0
}
