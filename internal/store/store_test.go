package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustRecord(t *testing.T, s *Store, name, ptype string, d UsageDelta) {
	t.Helper()
	if err := s.UpsertUsage(name, ptype, time.Now(), d); err != nil {
		t.Fatalf("UpsertUsage(%s) failed: %v", name, err)
	}
}

func callDelta() UsageDelta {
	return UsageDelta{CallCount: 1}
}

func durDelta(ms int64) UsageDelta {
	return UsageDelta{CallCount: 1, DurationMs: &ms}
}

func TestOpenCreatesSchema(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{usageTable, metadataTable, schemaTable} {
		if !tableExists(s.db, table) {
			t.Errorf("Table %s missing after Open", table)
		}
	}
	if v := schemaVersion(s.db); v != CurrentSchemaVersion {
		t.Errorf("Schema version = %d, want %d", v, CurrentSchemaVersion)
	}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	s := newTestStore(t)
	mustRecord(t, s, "tool_a", TypeTool, callDelta())

	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("Second EnsureSchema failed: %v", err)
	}
	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("Third EnsureSchema failed: %v", err)
	}

	row, err := s.ReadUsage("tool_a")
	if err != nil {
		t.Fatalf("ReadUsage failed: %v", err)
	}
	if row == nil || row.CallCount != 1 {
		t.Errorf("Data not preserved across EnsureSchema calls: %+v", row)
	}
}

func TestEnsureSchemaConcurrent(t *testing.T) {
	s := newTestStore(t)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() { done <- s.EnsureSchema() }()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Concurrent EnsureSchema failed: %v", err)
		}
	}

	// Exactly one migration record per version bump, not one per caller
	var markers int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + schemaTable).Scan(&markers); err != nil {
		t.Fatalf("Failed to count schema markers: %v", err)
	}
	if markers != 1 {
		t.Errorf("Expected 1 schema marker, got %d", markers)
	}
}

func TestMigrateV1ToV2(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")

	// Build a v1-shaped database with existing data
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to open raw database: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE ` + usageTable + ` (
			name TEXT PRIMARY KEY,
			type TEXT NOT NULL DEFAULT 'tool',
			call_count INTEGER NOT NULL DEFAULT 0,
			last_accessed TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE ` + metadataTable + ` (
			name TEXT PRIMARY KEY,
			tags TEXT NOT NULL DEFAULT '',
			short_description TEXT NOT NULL DEFAULT '',
			full_description TEXT DEFAULT '',
			schema_version INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL
		);
		INSERT INTO ` + usageTable + ` (name, type, call_count, last_accessed, created_at)
		VALUES ('legacy_tool', 'tool', 42, '2026-01-01T00:00:00', '2025-06-01T00:00:00');
	`)
	if err != nil {
		t.Fatalf("Failed to seed v1 database: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed on v1 database: %v", err)
	}
	defer s.Close()

	row, err := s.ReadUsage("legacy_tool")
	if err != nil {
		t.Fatalf("ReadUsage failed: %v", err)
	}
	if row == nil {
		t.Fatal("Legacy row lost during migration")
	}
	if row.CallCount != 42 {
		t.Errorf("call_count = %d, want 42", row.CallCount)
	}
	if row.EstimatedTokens != 0 || row.TotalDurationMs != 0 {
		t.Errorf("New numeric columns should default to 0: %+v", row)
	}
	if row.MinDurationMs != nil || row.MaxDurationMs != nil {
		t.Error("New nullable columns should default to NULL")
	}
	if v := schemaVersion(s.db); v != 2 {
		t.Errorf("Schema version after migration = %d, want 2", v)
	}

	// Increments keep working against migrated rows
	mustRecord(t, s, "legacy_tool", TypeTool, durDelta(250))
	row, _ = s.ReadUsage("legacy_tool")
	if row.CallCount != 43 {
		t.Errorf("call_count after migration increment = %d, want 43", row.CallCount)
	}
	if row.MinDurationMs == nil || *row.MinDurationMs != 250 {
		t.Errorf("min_duration_ms = %v, want 250", row.MinDurationMs)
	}
}

func TestNewerSchemaRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := setSchemaVersion(s.db, CurrentSchemaVersion+1); err != nil {
		t.Fatalf("Failed to bump schema version: %v", err)
	}
	s.Close()

	_, err = Open(path)
	var me *MigrationError
	if !errors.As(err, &me) {
		t.Fatalf("Expected MigrationError for newer schema, got %v", err)
	}
}

func TestUpsertIncrementsAndTimestamps(t *testing.T) {
	s := newTestStore(t)

	mustRecord(t, s, "tool_a", TypeTool, callDelta())
	mustRecord(t, s, "tool_a", TypeTool, callDelta())
	mustRecord(t, s, "tool_a", TypeTool, callDelta())

	row, err := s.ReadUsage("tool_a")
	if err != nil {
		t.Fatalf("ReadUsage failed: %v", err)
	}
	if row.CallCount != 3 {
		t.Errorf("call_count = %d, want 3", row.CallCount)
	}
	if row.CreatedAt == "" || row.LastAccessed == "" {
		t.Error("Timestamps not set")
	}
	if row.Type != TypeTool {
		t.Errorf("type = %q, want tool", row.Type)
	}
}

func TestTypeImmutableAfterFirstRecord(t *testing.T) {
	s := newTestStore(t)
	mustRecord(t, s, "thing", TypeTool, callDelta())
	mustRecord(t, s, "thing", TypePrompt, callDelta())

	row, _ := s.ReadUsage("thing")
	if row.Type != TypeTool {
		t.Errorf("type changed to %q; should stay at first-record value", row.Type)
	}
	if row.CallCount != 2 {
		t.Errorf("call_count = %d, want 2", row.CallCount)
	}
}

func TestUnknownTypeRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.UpsertUsage("x", "gizmo", time.Now(), callDelta())
	if !IsValidation(err) {
		t.Errorf("Expected ValidationError for unknown type, got %v", err)
	}
	if row, _ := s.ReadUsage("x"); row != nil {
		t.Error("Invalid record should not create a row")
	}
}

func TestDurationBounds(t *testing.T) {
	s := newTestStore(t)

	for _, ms := range []int64{500, 100, 900, 100} {
		mustRecord(t, s, "timed", TypeTool, durDelta(ms))
	}

	row, err := s.ReadUsage("timed")
	if err != nil {
		t.Fatalf("ReadUsage failed: %v", err)
	}
	if row.MinDurationMs == nil || *row.MinDurationMs != 100 {
		t.Errorf("min_duration_ms = %v, want 100", row.MinDurationMs)
	}
	if row.MaxDurationMs == nil || *row.MaxDurationMs != 900 {
		t.Errorf("max_duration_ms = %v, want 900", row.MaxDurationMs)
	}
	if row.TotalDurationMs != 1600 {
		t.Errorf("total_duration_ms = %d, want 1600", row.TotalDurationMs)
	}
}

func TestDurationBoundsNullWithoutSamples(t *testing.T) {
	s := newTestStore(t)
	mustRecord(t, s, "untimed", TypeTool, callDelta())
	mustRecord(t, s, "untimed", TypeTool, callDelta())

	row, _ := s.ReadUsage("untimed")
	if row.MinDurationMs != nil || row.MaxDurationMs != nil {
		t.Errorf("Bounds should stay NULL without duration samples: min=%v max=%v",
			row.MinDurationMs, row.MaxDurationMs)
	}
}

func TestAddTokens(t *testing.T) {
	s := newTestStore(t)
	mustRecord(t, s, "tool_a", TypeTool, callDelta())

	before, _ := s.ReadUsage("tool_a")

	if err := s.AddTokens("tool_a", 100, 200); err != nil {
		t.Fatalf("AddTokens failed: %v", err)
	}
	if err := s.AddTokens("tool_a", 10, 20); err != nil {
		t.Fatalf("AddTokens failed: %v", err)
	}

	row, _ := s.ReadUsage("tool_a")
	if row.TotalInputTokens != 110 || row.TotalOutputTokens != 220 {
		t.Errorf("Token totals = %d/%d, want 110/220", row.TotalInputTokens, row.TotalOutputTokens)
	}
	if row.CallCount != before.CallCount {
		t.Error("AddTokens must not increment call_count")
	}
	if row.LastAccessed != before.LastAccessed {
		t.Error("AddTokens must not touch last_accessed")
	}
}

func TestAddTokensMissingRow(t *testing.T) {
	s := newTestStore(t)
	err := s.AddTokens("ghost", 1, 1)
	if !IsValidation(err) {
		t.Errorf("Expected ValidationError for missing row, got %v", err)
	}
}

func TestListUsageOrderAndFilters(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		mustRecord(t, s, "busy", TypeTool, callDelta())
	}
	for i := 0; i < 2; i++ {
		mustRecord(t, s, "alpha", TypeTool, callDelta())
	}
	for i := 0; i < 2; i++ {
		mustRecord(t, s, "beta", TypeTool, callDelta())
	}
	mustRecord(t, s, "greet", TypePrompt, callDelta())

	rows, err := s.ListUsage(UsageFilter{})
	if err != nil {
		t.Fatalf("ListUsage failed: %v", err)
	}
	gotOrder := make([]string, len(rows))
	for i, r := range rows {
		gotOrder[i] = r.Name
	}
	wantOrder := []string{"busy", "alpha", "beta", "greet"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("Order = %v, want %v", gotOrder, wantOrder)
		}
	}

	toolRows, err := s.ListUsage(UsageFilter{Type: TypeTool})
	if err != nil {
		t.Fatalf("ListUsage(type=tool) failed: %v", err)
	}
	if len(toolRows) != 3 {
		t.Errorf("Type filter returned %d rows, want 3", len(toolRows))
	}
}

func TestClosedStoreFailsFast(t *testing.T) {
	s := newTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}

	if err := s.UpsertUsage("x", TypeTool, time.Now(), callDelta()); !errors.Is(err, ErrClosed) {
		t.Errorf("UpsertUsage after Close = %v, want ErrClosed", err)
	}
	if _, err := s.ListUsage(UsageFilter{}); !errors.Is(err, ErrClosed) {
		t.Errorf("ListUsage after Close = %v, want ErrClosed", err)
	}
	if _, err := s.ListMetadata(); !errors.Is(err, ErrClosed) {
		t.Errorf("ListMetadata after Close = %v, want ErrClosed", err)
	}
}
