package tracker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"mcpstat/internal/logging"
)

// GetCatalog answers a filtered catalog listing. Tag filters use AND
// semantics (a row matches only when its tag set contains every requested
// tag); the text query is a case-insensitive substring match over the name,
// the tags, and both descriptions; when both are given a row must satisfy
// both. AllTags always spans every metadata row, filters or not: it is the
// facet index for the whole catalog.
func (t *Tracker) GetCatalog(ctx context.Context, q CatalogQuery) (*CatalogResponse, error) {
	metas, err := t.db.ListMetadata()
	if err != nil {
		return nil, fmt.Errorf("get catalog: %w", err)
	}

	tagFilters := make([]string, 0, len(q.Tags))
	for _, raw := range q.Tags {
		if tag := strings.ToLower(strings.TrimSpace(raw)); tag != "" {
			tagFilters = append(tagFilters, tag)
		}
	}
	queryText := strings.ToLower(strings.Join(strings.Fields(q.Query), " "))

	resp := &CatalogResponse{
		TotalTracked: int64(len(metas)),
		Filters:      CatalogFilters{Tags: tagFilters, Query: queryText},
		IncludeUsage: q.IncludeUsage,
		Limit:        q.Limit,
		Results:      []CatalogEntry{},
	}

	allTags := make(map[string]struct{})
	var totalCalls int64

	for _, m := range metas {
		for _, tag := range m.Tags {
			allTags[tag] = struct{}{}
		}

		if !hasAllTags(m.Tags, tagFilters) {
			continue
		}
		if queryText != "" && !matchesQuery(m.Name, m.Tags, m.ShortDescription, m.FullDescription, queryText) {
			continue
		}

		entry := CatalogEntry{
			Name:             m.Name,
			ShortDescription: m.ShortDescription,
			FullDescription:  m.FullDescription,
			Tags:             m.Tags,
			SchemaVersion:    m.SchemaVersion,
			UpdatedAt:        m.UpdatedAt,
		}
		if entry.Tags == nil {
			entry.Tags = []string{}
		}

		if q.IncludeUsage {
			var count int64
			if m.CallCount != nil {
				count = *m.CallCount
			}
			entry.CallCount = &count
			entry.LastAccessed = m.LastAccessed
			totalCalls += count
		}
		resp.Results = append(resp.Results, entry)
	}

	sortCatalog(resp.Results)

	resp.Matched = int64(len(resp.Results))
	if q.Limit > 0 && len(resp.Results) > q.Limit {
		resp.Results = resp.Results[:q.Limit]
	}

	resp.AllTags = make([]string, 0, len(allTags))
	for tag := range allTags {
		resp.AllTags = append(resp.AllTags, tag)
	}
	sort.Strings(resp.AllTags)

	if q.IncludeUsage {
		resp.TotalCalls = &totalCalls
	}

	logging.CatalogDebug("GetCatalog: %d/%d matched (tags=%v query=%q)",
		resp.Matched, resp.TotalTracked, tagFilters, queryText)
	return resp, nil
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func matchesQuery(name string, tagList []string, short, full, queryText string) bool {
	haystack := strings.ToLower(strings.Join([]string{
		name, strings.Join(tagList, " "), short, full,
	}, " "))
	return strings.Contains(haystack, queryText)
}

// sortCatalog orders results by call count descending, most recent access
// next, name last, so truncation is stable and reproducible. Rows without
// usage sort after anything with a count.
func sortCatalog(results []CatalogEntry) {
	sort.SliceStable(results, func(i, j int) bool {
		ci, cj := catalogCount(results[i]), catalogCount(results[j])
		if ci != cj {
			return ci > cj
		}
		ai, aj := catalogAccess(results[i]), catalogAccess(results[j])
		if ai != aj {
			return ai > aj
		}
		return results[i].Name < results[j].Name
	})
}

func catalogCount(e CatalogEntry) int64 {
	if e.CallCount == nil {
		return 0
	}
	return *e.CallCount
}

func catalogAccess(e CatalogEntry) string {
	if e.LastAccessed == nil {
		return ""
	}
	return *e.LastAccessed
}
