// Package store provides the SQLite persistence layer for mcpstat: a usage
// aggregate table and a metadata catalog table behind a schema-versioned
// migration routine.
//
// Concurrency model: one database handle, one RWMutex. All mutating
// operations serialize through the write lock, so two concurrent increments
// for the same name can never lose an update. Reads take the read lock and
// therefore never observe a torn write. Coarse, but this is low-volume
// telemetry, not a hot data path.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mcpstat/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

// Table names. The mcpstat_ prefix keeps the tables recognizable when the
// store shares a database file with the host application.
const (
	usageTable    = "mcpstat_usage"
	metadataTable = "mcpstat_metadata"
	schemaTable   = "mcpstat_schema"
)

// timeFormat is the stored timestamp layout: UTC ISO-8601 at second
// precision. Lexicographic order equals chronological order, which the
// MAX(last_accessed) rollups rely on.
const timeFormat = "2006-01-02T15:04:05"

// Store owns the SQLite handle for the usage and metadata tables.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
	closed bool
}

// Open initializes the store at the given path and ensures the schema is at
// the current version. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening store at %s", path)

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, storageErr("open", fmt.Errorf("failed to create directory: %w", err))
			}
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, storageErr("open", err)
	}
	// A single connection keeps the in-process serialization honest and is
	// mandatory for :memory: databases (each connection gets its own).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set synchronous=NORMAL: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.EnsureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Store ready at %s (schema v%d)", path, CurrentSchemaVersion)
	return s, nil
}

// Close releases the database handle. Subsequent operations fail fast with
// a StorageError wrapping ErrClosed. Safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	logging.Store("Closing store at %s", s.dbPath)
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// checkOpen must be called with at least the read lock held.
func (s *Store) checkOpen(op string) error {
	if s.closed {
		return storageErr(op, ErrClosed)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}
