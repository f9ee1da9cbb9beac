package tools

import (
	"context"
	"fmt"
	"strings"

	"mcpstat/internal/tracker"
)

// GenerateStatsPrompt renders a markdown usage report suitable for LLM
// consumption, grouped by primitive type. typeFilter is "all" or one of the
// primitive types; period is a free-text label echoed in the footer.
func GenerateStatsPrompt(ctx context.Context, tr *tracker.Tracker, period, typeFilter string, includeRecommendations bool) (string, error) {
	if period == "" {
		period = "all time"
	}
	typeFilter = strings.ToLower(typeFilter)
	if typeFilter == "" {
		typeFilter = "all"
	}

	data, err := tr.GetByType(ctx)
	if err != nil {
		return "", fmt.Errorf("stats prompt: %w", err)
	}

	var summaryParts []string
	for _, t := range []string{"tool", "resource", "prompt"} {
		if s, ok := data.Summary[t]; ok {
			summaryParts = append(summaryParts, fmt.Sprintf("%d %ss (%d calls)", s.Count, t, s.TotalCalls))
		}
	}
	summaryLine := "No data"
	if len(summaryParts) > 0 {
		summaryLine = strings.Join(summaryParts, ", ")
	}

	var sections []string
	for _, sec := range []struct {
		ptype string
		title string
	}{
		{"tool", "Tools"},
		{"resource", "Resources"},
		{"prompt", "Prompts"},
	} {
		if typeFilter != "all" && typeFilter != sec.ptype {
			continue
		}
		s := data.Summary[sec.ptype]
		entries := data.ByType[sec.ptype]
		sections = append(sections, fmt.Sprintf(
			"### %s (%d tracked, %d calls)\n\n**Top 5:**\n%s\n\n**Unused:**\n%s",
			sec.title, s.Count, s.TotalCalls, formatTop(entries, 5), formatUnused(entries)))
	}

	recs := ""
	if includeRecommendations {
		recs = `

---
**Recommendations:**
1. High-usage tools represent key workflows: ensure robust error handling
2. Unused items may need better documentation or deprecation
3. Consider promoting underused tools that provide value`
	}

	filterNote := ""
	if typeFilter != "all" {
		filterNote = fmt.Sprintf(" (filtered: %s)", typeFilter)
	}

	return fmt.Sprintf(`## MCP Usage Statistics%s

**Summary:** %s
**Total:** %d calls across all primitives

%s%s

---
_Period: %s_`, filterNote, summaryLine, data.TotalCalls, strings.Join(sections, "\n\n"), recs, period), nil
}

// formatTop renders the most-called entries as a numbered list. Entries
// arrive already sorted by call count descending.
func formatTop(entries []tracker.TypeEntry, limit int) string {
	var lines []string
	for _, e := range entries {
		if e.CallCount == 0 || len(lines) >= limit {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. `%s` - **%d calls**", len(lines)+1, e.Name, e.CallCount))
	}
	if len(lines) == 0 {
		return "(None used yet)"
	}
	return strings.Join(lines, "\n")
}

func formatUnused(entries []tracker.TypeEntry) string {
	var lines []string
	for _, e := range entries {
		if e.CallCount == 0 {
			lines = append(lines, fmt.Sprintf("- `%s`", e.Name))
		}
	}
	if len(lines) == 0 {
		return "(All have been used)"
	}
	return strings.Join(lines, "\n")
}
