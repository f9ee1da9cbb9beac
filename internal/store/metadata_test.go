package store

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)

	err := s.UpsertMetadata("fetch_weather", []string{"weather", "api"},
		"Fetches current weather.", "Fetches current weather. Uses the upstream API.")
	if err != nil {
		t.Fatalf("UpsertMetadata failed: %v", err)
	}

	m, err := s.ReadMetadata("fetch_weather")
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}
	if m == nil {
		t.Fatal("ReadMetadata returned nil for existing row")
	}
	if diff := cmp.Diff([]string{"weather", "api"}, m.Tags); diff != "" {
		t.Errorf("Tags mismatch (-want +got):\n%s", diff)
	}
	if m.ShortDescription != "Fetches current weather." {
		t.Errorf("short_description = %q", m.ShortDescription)
	}
	if m.SchemaVersion != MetadataSchemaVersion {
		t.Errorf("schema_version = %d, want %d", m.SchemaVersion, MetadataSchemaVersion)
	}
	if m.CallCount != nil {
		t.Error("CallCount should be nil without a usage row")
	}
}

func TestReadMetadataMissing(t *testing.T) {
	s := newTestStore(t)
	m, err := s.ReadMetadata("nope")
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}
	if m != nil {
		t.Errorf("Expected nil for missing row, got %+v", m)
	}
}

func TestUpsertMetadataReplacesWholesale(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertMetadata("t", []string{"old", "stale"}, "Old.", "Old full."); err != nil {
		t.Fatalf("UpsertMetadata failed: %v", err)
	}
	if err := s.UpsertMetadata("t", []string{"new"}, "New.", ""); err != nil {
		t.Fatalf("UpsertMetadata failed: %v", err)
	}

	m, _ := s.ReadMetadata("t")
	if diff := cmp.Diff([]string{"new"}, m.Tags); diff != "" {
		t.Errorf("Tags should be replaced, not merged (-want +got):\n%s", diff)
	}
	if m.ShortDescription != "New." || m.FullDescription != "" {
		t.Errorf("Descriptions not replaced: %+v", m)
	}
}

func TestListMetadataJoinsUsage(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertMetadata("used", []string{"a"}, "Used.", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertMetadata("unused", []string{"b"}, "Unused.", ""); err != nil {
		t.Fatal(err)
	}
	mustRecord(t, s, "used", TypeTool, callDelta())

	list, err := s.ListMetadata()
	if err != nil {
		t.Fatalf("ListMetadata failed: %v", err)
	}
	byName := make(map[string]MetadataRow, len(list))
	for _, m := range list {
		byName[m.Name] = m
	}
	if got := byName["used"]; got.CallCount == nil || *got.CallCount != 1 {
		t.Errorf("used.CallCount = %v, want 1", got.CallCount)
	}
	if got := byName["unused"]; got.CallCount != nil {
		t.Errorf("unused.CallCount = %v, want nil", got.CallCount)
	}
}

func TestSyncMetadataUpsertsAndCleansOrphans(t *testing.T) {
	s := newTestStore(t)

	// Existing catalog: keep, change, orphan. The orphan has usage history.
	for _, name := range []string{"keep", "change", "orphan"} {
		if err := s.UpsertMetadata(name, []string{"x"}, "Desc.", ""); err != nil {
			t.Fatal(err)
		}
	}
	mustRecord(t, s, "orphan", TypeTool, callDelta())

	batch := []MetadataUpsert{
		{Name: "keep", Tags: []string{"x"}, ShortDescription: "Desc."},
		{Name: "change", Tags: []string{"y"}, ShortDescription: "Changed."},
		{Name: "fresh", Tags: []string{"z"}, ShortDescription: "Fresh."},
	}
	if err := s.SyncMetadata(batch, true); err != nil {
		t.Fatalf("SyncMetadata failed: %v", err)
	}

	if m, _ := s.ReadMetadata("orphan"); m != nil {
		t.Error("Orphan metadata should be deleted")
	}
	if m, _ := s.ReadMetadata("fresh"); m == nil {
		t.Error("New entry should be inserted")
	}
	if m, _ := s.ReadMetadata("change"); m == nil || m.ShortDescription != "Changed." {
		t.Errorf("Changed entry not updated: %+v", m)
	}

	// Usage history outlives catalog membership
	u, err := s.ReadUsage("orphan")
	if err != nil {
		t.Fatalf("ReadUsage failed: %v", err)
	}
	if u == nil || u.CallCount != 1 {
		t.Errorf("Usage row for orphan must survive cleanup: %+v", u)
	}
}

func TestSyncMetadataSkipsUnchanged(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertMetadata("stable", []string{"a", "b"}, "Same.", "Same full."); err != nil {
		t.Fatal(err)
	}
	before, _ := s.ReadMetadata("stable")

	time.Sleep(1100 * time.Millisecond)

	batch := []MetadataUpsert{
		{Name: "stable", Tags: []string{"a", "b"}, ShortDescription: "Same.", FullDescription: "Same full."},
	}
	if err := s.SyncMetadata(batch, false); err != nil {
		t.Fatalf("SyncMetadata failed: %v", err)
	}

	after, _ := s.ReadMetadata("stable")
	if after.UpdatedAt != before.UpdatedAt {
		t.Errorf("Unchanged row rewritten: updated_at %s -> %s", before.UpdatedAt, after.UpdatedAt)
	}
}

func TestSyncMetadataNoCleanup(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertMetadata("stray", []string{"x"}, "Stray.", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.SyncMetadata([]MetadataUpsert{{Name: "other", ShortDescription: "O."}}, false); err != nil {
		t.Fatalf("SyncMetadata failed: %v", err)
	}

	if m, _ := s.ReadMetadata("stray"); m == nil {
		t.Error("Cleanup disabled; stray metadata should survive")
	}
}
