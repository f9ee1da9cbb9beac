package tracker

import (
	"context"
	"fmt"

	"mcpstat/internal/logging"
	"mcpstat/internal/store"
)

// GetStats lists per-primitive usage with derived averages plus a summary
// over the whole filtered set. Limit truncates the row list only: the
// summary always reflects every row passing the filters.
//
// Averages use truncating integer division. avg_tokens_per_call prefers
// actual token sums and falls back to the estimate only when the actual sum
// is exactly zero.
func (t *Tracker) GetStats(ctx context.Context, q StatsQuery) (*StatsResponse, error) {
	rows, err := t.db.ListUsage(store.UsageFilter{
		Type:        q.TypeFilter,
		ExcludeZero: !q.IncludeZero,
	})
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	resp := &StatsResponse{Stats: make([]StatsEntry, 0, len(rows))}
	var latest string

	for _, row := range rows {
		entry := statsEntry(row)
		resp.Stats = append(resp.Stats, entry)

		resp.TotalCalls += row.CallCount
		if row.CallCount == 0 {
			resp.ZeroCount++
		}
		if row.LastAccessed > latest {
			latest = row.LastAccessed
		}

		resp.Tokens.TotalInputTokens += row.TotalInputTokens
		resp.Tokens.TotalOutputTokens += row.TotalOutputTokens
		resp.Tokens.TotalEstimatedTokens += row.EstimatedTokens
		if row.TotalInputTokens+row.TotalOutputTokens > 0 {
			resp.Tokens.HasActualTokens = true
		}

		resp.Latency.TotalDurationMs += row.TotalDurationMs
		if row.TotalDurationMs > 0 {
			resp.Latency.HasLatencyData = true
		}
	}

	resp.TrackedCount = int64(len(rows))
	if latest != "" {
		resp.LatestAccess = &latest
	}

	// With zero rows excluded from the listing, zero_count still reports how
	// many were excluded, over the same type filter.
	if !q.IncludeZero {
		zeros, err := t.db.CountZeroUsage(q.TypeFilter)
		if err != nil {
			return nil, fmt.Errorf("get stats: %w", err)
		}
		resp.ZeroCount = int64(zeros)
	}

	if q.Limit > 0 && len(resp.Stats) > q.Limit {
		resp.Stats = resp.Stats[:q.Limit]
	}

	logging.CatalogDebug("GetStats: %d tracked, %d calls, %d rows returned",
		resp.TrackedCount, resp.TotalCalls, len(resp.Stats))
	return resp, nil
}

// GetByType partitions all usage rows by primitive type. Every known type
// appears in the grouping even when empty.
func (t *Tracker) GetByType(ctx context.Context) (*TypeBreakdown, error) {
	rows, err := t.db.ListUsage(store.UsageFilter{})
	if err != nil {
		return nil, fmt.Errorf("get by type: %w", err)
	}

	bd := &TypeBreakdown{
		ByType: map[string][]TypeEntry{
			store.TypeTool:     {},
			store.TypePrompt:   {},
			store.TypeResource: {},
		},
		Summary: make(map[string]TypeSummary),
	}

	for _, row := range rows {
		entry := TypeEntry{
			Name:         row.Name,
			Type:         row.Type,
			CallCount:    row.CallCount,
			LastAccessed: row.LastAccessed,
		}
		bd.ByType[row.Type] = append(bd.ByType[row.Type], entry)

		s := bd.Summary[row.Type]
		s.Count++
		s.TotalCalls += row.CallCount
		bd.Summary[row.Type] = s

		bd.TotalCalls += row.CallCount
	}
	bd.TotalItems = int64(len(rows))
	return bd, nil
}

func statsEntry(row store.UsageRow) StatsEntry {
	entry := StatsEntry{
		Name:               row.Name,
		Type:               row.Type,
		CallCount:          row.CallCount,
		LastAccessed:       row.LastAccessed,
		Tags:               row.Tags,
		ShortDescription:   row.ShortDescription,
		FullDescription:    row.FullDescription,
		TotalInputTokens:   row.TotalInputTokens,
		TotalOutputTokens:  row.TotalOutputTokens,
		TotalResponseChars: row.TotalResponseChars,
		EstimatedTokens:    row.EstimatedTokens,
		TotalDurationMs:    row.TotalDurationMs,
		MinDurationMs:      row.MinDurationMs,
		MaxDurationMs:      row.MaxDurationMs,
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}

	if row.CallCount > 0 {
		actual := row.TotalInputTokens + row.TotalOutputTokens
		if actual > 0 {
			entry.AvgTokensPerCall = actual / row.CallCount
		} else {
			entry.AvgTokensPerCall = row.EstimatedTokens / row.CallCount
		}
		entry.AvgLatencyMs = row.TotalDurationMs / row.CallCount
	}
	return entry
}
