package store

import (
	"database/sql"
	"fmt"
	"time"

	"mcpstat/internal/logging"
)

// Primitive types tracked by the usage table.
const (
	TypeTool     = "tool"
	TypePrompt   = "prompt"
	TypeResource = "resource"
)

// ValidType reports whether primitiveType is one of the known primitive
// kinds.
func ValidType(primitiveType string) bool {
	switch primitiveType {
	case TypeTool, TypePrompt, TypeResource:
		return true
	}
	return false
}

// UsageDelta carries one observation's additive contribution to an
// aggregate row. Zero-valued counters mean "add nothing". Duration is a
// pointer because present-and-zero and absent are different things for the
// min/max bounds.
type UsageDelta struct {
	CallCount       int64
	InputTokens     int64
	OutputTokens    int64
	ResponseChars   int64
	EstimatedTokens int64
	DurationMs      *int64
}

// UsageRow is one per-name aggregate as stored.
type UsageRow struct {
	Name               string
	Type               string
	CallCount          int64
	LastAccessed       string
	CreatedAt          string
	TotalInputTokens   int64
	TotalOutputTokens  int64
	TotalResponseChars int64
	EstimatedTokens    int64
	TotalDurationMs    int64
	MinDurationMs      *int64
	MaxDurationMs      *int64

	// Joined metadata; empty when no metadata row exists.
	Tags             []string
	ShortDescription string
	FullDescription  string
}

// UsageFilter narrows ListUsage results.
type UsageFilter struct {
	Type        string // empty = all types
	ExcludeZero bool   // drop rows with call_count == 0
}

const usageColumns = `u.name, u.type, u.call_count, u.last_accessed, u.created_at,
	u.total_input_tokens, u.total_output_tokens, u.total_response_chars,
	u.estimated_tokens, u.total_duration_ms, u.min_duration_ms, u.max_duration_ms`

// UpsertUsage applies one observation to the aggregate row for name,
// creating the row if absent. The whole read-modify-write happens in a
// single INSERT .. ON CONFLICT statement, atomic with respect to other
// upserts for the same name.
//
// The type column is written only on insert: a name denotes one primitive
// kind, set at first record.
func (s *Store) UpsertUsage(name, primitiveType string, ts time.Time, d UsageDelta) error {
	if !ValidType(primitiveType) {
		return &ValidationError{Op: "upsert_usage", Reason: fmt.Sprintf("unknown primitive type %q", primitiveType)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("upsert_usage"); err != nil {
		return err
	}

	now := formatTime(ts)
	_, err := s.db.Exec(`
		INSERT INTO `+usageTable+` (
			name, type, call_count, last_accessed, created_at,
			total_input_tokens, total_output_tokens, total_response_chars,
			estimated_tokens, total_duration_ms, min_duration_ms, max_duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			call_count = call_count + excluded.call_count,
			last_accessed = excluded.last_accessed,
			total_input_tokens = total_input_tokens + excluded.total_input_tokens,
			total_output_tokens = total_output_tokens + excluded.total_output_tokens,
			total_response_chars = total_response_chars + excluded.total_response_chars,
			estimated_tokens = estimated_tokens + excluded.estimated_tokens,
			total_duration_ms = total_duration_ms + excluded.total_duration_ms,
			min_duration_ms = CASE
				WHEN excluded.min_duration_ms IS NULL THEN min_duration_ms
				WHEN min_duration_ms IS NULL THEN excluded.min_duration_ms
				ELSE MIN(min_duration_ms, excluded.min_duration_ms)
			END,
			max_duration_ms = CASE
				WHEN excluded.max_duration_ms IS NULL THEN max_duration_ms
				WHEN max_duration_ms IS NULL THEN excluded.max_duration_ms
				ELSE MAX(max_duration_ms, excluded.max_duration_ms)
			END`,
		name, primitiveType, d.CallCount, now, now,
		d.InputTokens, d.OutputTokens, d.ResponseChars,
		d.EstimatedTokens, durationSum(d.DurationMs), nullableInt(d.DurationMs), nullableInt(d.DurationMs),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Usage upsert failed for %s: %v", name, err)
		return storageErr("upsert_usage", err)
	}

	logging.StoreDebug("Usage upsert: %s (%s) +%d calls", name, primitiveType, d.CallCount)
	return nil
}

// AddTokens adds to an existing row's token totals without touching
// call_count or last_accessed. A missing row is a caller error.
func (s *Store) AddTokens(name string, inputTokens, outputTokens int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("add_tokens"); err != nil {
		return err
	}

	res, err := s.db.Exec(`
		UPDATE `+usageTable+`
		SET total_input_tokens = total_input_tokens + ?,
		    total_output_tokens = total_output_tokens + ?
		WHERE name = ?`,
		inputTokens, outputTokens, name,
	)
	if err != nil {
		return storageErr("add_tokens", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("add_tokens", err)
	}
	if affected == 0 {
		return &ValidationError{Op: "add_tokens", Reason: fmt.Sprintf("no usage row for %q", name)}
	}

	logging.StoreDebug("Token report: %s +%d in / +%d out", name, inputTokens, outputTokens)
	return nil
}

// ReadUsage returns the aggregate row for name, or nil when none exists.
func (s *Store) ReadUsage(name string) (*UsageRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("read_usage"); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`
		SELECT `+usageColumns+`, NULL, NULL, NULL
		FROM `+usageTable+` u WHERE u.name = ?`, name)

	u, err := scanUsageRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("read_usage", err)
	}
	return u, nil
}

// ListUsage returns aggregate rows joined with metadata, ordered by
// call_count descending with name as the tiebreak so truncation is
// reproducible.
func (s *Store) ListUsage(filter UsageFilter) ([]UsageRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("list_usage"); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + usageColumns + `, m.tags, m.short_description, m.full_description
		FROM ` + usageTable + ` u
		LEFT JOIN ` + metadataTable + ` m ON u.name = m.name`

	var conditions []string
	var params []interface{}
	if filter.Type != "" {
		conditions = append(conditions, "u.type = ?")
		params = append(params, filter.Type)
	}
	if filter.ExcludeZero {
		conditions = append(conditions, "u.call_count > 0")
	}
	for i, c := range conditions {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY u.call_count DESC, u.name ASC"

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, storageErr("list_usage", err)
	}
	defer rows.Close()

	var out []UsageRow
	for rows.Next() {
		u, err := scanUsageRow(rows)
		if err != nil {
			return nil, storageErr("list_usage", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list_usage", err)
	}
	return out, nil
}

// CountZeroUsage counts rows with call_count == 0 for the given type filter.
// Used by the stats rollup when zero rows are excluded from the listing but
// still reported.
func (s *Store) CountZeroUsage(typeFilter string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("count_zero_usage"); err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM " + usageTable + " WHERE call_count = 0"
	var params []interface{}
	if typeFilter != "" {
		query += " AND type = ?"
		params = append(params, typeFilter)
	}

	var count int
	if err := s.db.QueryRow(query, params...).Scan(&count); err != nil {
		return 0, storageErr("count_zero_usage", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUsageRow(r rowScanner) (*UsageRow, error) {
	var u UsageRow
	var minDur, maxDur sql.NullInt64
	var mTags, mShort, mFull sql.NullString

	err := r.Scan(
		&u.Name, &u.Type, &u.CallCount, &u.LastAccessed, &u.CreatedAt,
		&u.TotalInputTokens, &u.TotalOutputTokens, &u.TotalResponseChars,
		&u.EstimatedTokens, &u.TotalDurationMs, &minDur, &maxDur,
		&mTags, &mShort, &mFull,
	)
	if err != nil {
		return nil, err
	}

	if minDur.Valid {
		v := minDur.Int64
		u.MinDurationMs = &v
	}
	if maxDur.Valid {
		v := maxDur.Int64
		u.MaxDurationMs = &v
	}
	u.Tags = splitTags(mTags.String)
	u.ShortDescription = mShort.String
	u.FullDescription = mFull.String
	return &u, nil
}

func durationSum(d *int64) int64 {
	if d == nil {
		return 0
	}
	return *d
}

func nullableInt(d *int64) interface{} {
	if d == nil {
		return nil
	}
	return *d
}
