package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mcpstat/internal/logging"
	"mcpstat/internal/tags"
)

// MetadataSchemaVersion stamps the shape of metadata rows for forward
// migration bookkeeping, independent of the database schema version.
const MetadataSchemaVersion = 1

// MetadataRow is one catalog entry. Lifecycle is independent of usage rows:
// either may exist without the other.
type MetadataRow struct {
	Name             string
	Tags             []string
	ShortDescription string
	FullDescription  string
	SchemaVersion    int
	UpdatedAt        string

	// Joined usage; nil CallCount means no usage row exists.
	CallCount    *int64
	LastAccessed *string
}

// MetadataUpsert is one entry of a sync batch.
type MetadataUpsert struct {
	Name             string
	Tags             []string
	ShortDescription string
	FullDescription  string
}

// UpsertMetadata replaces the metadata for name wholesale: tags and
// descriptions are overwritten, not merged, and updated_at is bumped.
func (s *Store) UpsertMetadata(name string, tagList []string, short, full string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("upsert_metadata"); err != nil {
		return err
	}
	return s.upsertMetadataLocked(s.db, name, tagList, short, full, time.Now())
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (s *Store) upsertMetadataLocked(db execer, name string, tagList []string, short, full string, ts time.Time) error {
	_, err := db.Exec(`
		INSERT INTO `+metadataTable+`
		(name, tags, short_description, full_description, schema_version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			tags = excluded.tags,
			short_description = excluded.short_description,
			full_description = excluded.full_description,
			schema_version = excluded.schema_version,
			updated_at = excluded.updated_at`,
		name, tags.Join(tagList), short, full, MetadataSchemaVersion, formatTime(ts),
	)
	if err != nil {
		return storageErr("upsert_metadata", err)
	}
	logging.StoreDebug("Metadata upsert: %s (tags=%s)", name, tags.Join(tagList))
	return nil
}

// ReadMetadata returns the metadata row for name, or nil when none exists.
func (s *Store) ReadMetadata(name string) (*MetadataRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("read_metadata"); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`
		SELECT m.name, m.tags, m.short_description, m.full_description,
		       m.schema_version, m.updated_at, NULL, NULL
		FROM `+metadataTable+` m WHERE m.name = ?`, name)

	m, err := scanMetadataRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("read_metadata", err)
	}
	return m, nil
}

// ListMetadata returns all metadata rows joined with usage counts, in no
// particular order; callers sort.
func (s *Store) ListMetadata() ([]MetadataRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("list_metadata"); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT m.name, m.tags, m.short_description, m.full_description,
		       m.schema_version, m.updated_at,
		       u.call_count, u.last_accessed
		FROM ` + metadataTable + ` m
		LEFT JOIN ` + usageTable + ` u ON m.name = u.name`)
	if err != nil {
		return nil, storageErr("list_metadata", err)
	}
	defer rows.Close()

	var out []MetadataRow
	for rows.Next() {
		m, err := scanMetadataRow(rows)
		if err != nil {
			return nil, storageErr("list_metadata", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list_metadata", err)
	}
	return out, nil
}

// SyncMetadata makes the metadata table mirror the given batch: every entry
// is upserted (unchanged rows skipped) and, when cleanupOrphans is set,
// metadata rows absent from the batch are deleted. Usage rows are never
// touched: call history outlives catalog membership.
//
// The whole sync runs in one transaction, so readers observe either the old
// catalog or the new one, never a mix.
func (s *Store) SyncMetadata(batch []MetadataUpsert, cleanupOrphans bool) error {
	timer := logging.StartTimer(logging.CategoryStore, "SyncMetadata")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("sync_metadata"); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return storageErr("sync_metadata", err)
	}
	defer tx.Rollback()

	existing, err := readExistingMetadata(tx)
	if err != nil {
		return err
	}

	now := time.Now()
	keep := make(map[string]struct{}, len(batch))
	updated, skipped := 0, 0

	for _, def := range batch {
		keep[def.Name] = struct{}{}

		if cur, ok := existing[def.Name]; ok {
			if cur.tags == tags.Join(def.Tags) &&
				cur.short == def.ShortDescription &&
				cur.full == def.FullDescription &&
				cur.schemaVersion == MetadataSchemaVersion {
				skipped++
				continue
			}
		}
		if err := s.upsertMetadataLocked(tx, def.Name, def.Tags, def.ShortDescription, def.FullDescription, now); err != nil {
			return err
		}
		updated++
	}

	removed := 0
	if cleanupOrphans {
		var orphans []string
		for name := range existing {
			if _, ok := keep[name]; !ok {
				orphans = append(orphans, name)
			}
		}
		if len(orphans) > 0 {
			placeholders := strings.TrimRight(strings.Repeat("?,", len(orphans)), ",")
			args := make([]interface{}, len(orphans))
			for i, n := range orphans {
				args[i] = n
			}
			if _, err := tx.Exec(
				fmt.Sprintf("DELETE FROM %s WHERE name IN (%s)", metadataTable, placeholders),
				args...,
			); err != nil {
				return storageErr("sync_metadata", err)
			}
			removed = len(orphans)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("sync_metadata", err)
	}

	logging.Store("Metadata sync: updated=%d, unchanged=%d, removed=%d", updated, skipped, removed)
	return nil
}

type existingMeta struct {
	tags          string
	short         string
	full          string
	schemaVersion int
}

func readExistingMetadata(tx *sql.Tx) (map[string]existingMeta, error) {
	rows, err := tx.Query("SELECT name, tags, short_description, full_description, schema_version FROM " + metadataTable)
	if err != nil {
		return nil, storageErr("sync_metadata", err)
	}
	defer rows.Close()

	existing := make(map[string]existingMeta)
	for rows.Next() {
		var name string
		var m existingMeta
		var full sql.NullString
		if err := rows.Scan(&name, &m.tags, &m.short, &full, &m.schemaVersion); err != nil {
			return nil, storageErr("sync_metadata", err)
		}
		m.full = full.String
		existing[name] = m
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("sync_metadata", err)
	}
	return existing, nil
}

func scanMetadataRow(r rowScanner) (*MetadataRow, error) {
	var m MetadataRow
	var tagStr string
	var full sql.NullString
	var callCount sql.NullInt64
	var lastAccessed sql.NullString

	err := r.Scan(&m.Name, &tagStr, &m.ShortDescription, &full,
		&m.SchemaVersion, &m.UpdatedAt, &callCount, &lastAccessed)
	if err != nil {
		return nil, err
	}

	m.Tags = splitTags(tagStr)
	m.FullDescription = full.String
	if callCount.Valid {
		v := callCount.Int64
		m.CallCount = &v
	}
	if lastAccessed.Valid {
		v := lastAccessed.String
		m.LastAccessed = &v
	}
	return &m, nil
}

func splitTags(s string) []string {
	return tags.Parse(s)
}
