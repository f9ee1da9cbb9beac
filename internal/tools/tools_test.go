package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpstat/internal/store"
	"mcpstat/internal/tracker"
)

func newTracker(t *testing.T) *tracker.Tracker {
	t.Helper()
	tr, err := tracker.New(tracker.Config{ServerName: "test-server", DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestDefinitions(t *testing.T) {
	defs := Definitions("get", "weather-server")
	require.Len(t, defs, 2)

	assert.Equal(t, "get_tool_usage_stats", defs[0].Name)
	assert.Equal(t, "get_tool_catalog", defs[1].Name)
	assert.Contains(t, defs[0].Description, "weather-server")
	assert.Equal(t, "object", defs[0].InputSchema["type"])

	custom := Definitions("mcpstat", "x")
	assert.Equal(t, "mcpstat_tool_usage_stats", custom[0].Name)
}

func TestIsStatsTool(t *testing.T) {
	h := NewHandler(newTracker(t), "get")

	assert.True(t, h.IsStatsTool("get_tool_usage_stats"))
	assert.True(t, h.IsStatsTool("get_tool_catalog"))
	assert.False(t, h.IsStatsTool("fetch_weather"))
}

func TestHandleStats(t *testing.T) {
	tr := newTracker(t)
	h := NewHandler(tr, "get")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tr.Record(ctx, tracker.Observation{Name: "busy", Type: store.TypeTool, Success: true})
	}

	// Arguments as decoded JSON: numbers come through as float64
	result, err := h.Handle(ctx, "get_tool_usage_stats", map[string]any{
		"include_zero_usage": false,
		"limit":              float64(10),
	})
	require.NoError(t, err)

	stats, ok := result.(*tracker.StatsResponse)
	require.True(t, ok)
	assert.Equal(t, int64(3), stats.TotalCalls)
	require.Len(t, stats.Stats, 1)
	assert.Equal(t, "busy", stats.Stats[0].Name)
}

func TestHandleCatalog(t *testing.T) {
	tr := newTracker(t)
	h := NewHandler(tr, "get")
	ctx := context.Background()

	require.NoError(t, tr.RegisterMetadata(ctx, "fetch_weather", []string{"weather", "api"}, "Gets the forecast.", ""))
	require.NoError(t, tr.RegisterMetadata(ctx, "send_email", []string{"mail"}, "Sends mail.", ""))

	result, err := h.Handle(ctx, "get_tool_catalog", map[string]any{
		"tags":          []any{"weather", "api"},
		"include_usage": false,
	})
	require.NoError(t, err)

	cat, ok := result.(*tracker.CatalogResponse)
	require.True(t, ok)
	require.Equal(t, int64(1), cat.Matched)
	assert.Equal(t, "fetch_weather", cat.Results[0].Name)
}

func TestHandleUnknownTool(t *testing.T) {
	h := NewHandler(newTracker(t), "get")

	result, err := h.Handle(context.Background(), "fetch_weather", nil)
	require.NoError(t, err)
	assert.Nil(t, result, "non-stats tools fall through to the host dispatch")
}

func TestStatsPromptDefinition(t *testing.T) {
	def := StatsPromptDefinition("usage_overview", "weather-server")

	assert.Equal(t, "usage_overview", def.Name)
	assert.Contains(t, def.Description, "weather-server")
	require.Len(t, def.Arguments, 3)
	assert.Equal(t, "period", def.Arguments[0].Name)
	assert.False(t, def.Arguments[0].Required)
}

func TestGenerateStatsPrompt(t *testing.T) {
	tr := newTracker(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		tr.Record(ctx, tracker.Observation{Name: "popular_tool", Type: store.TypeTool, Success: true})
	}
	tr.Record(ctx, tracker.Observation{Name: "greeting", Type: store.TypePrompt, Success: true})

	text, err := GenerateStatsPrompt(ctx, tr, "past week", "all", true)
	require.NoError(t, err)

	assert.Contains(t, text, "## MCP Usage Statistics")
	assert.Contains(t, text, "`popular_tool` - **4 calls**")
	assert.Contains(t, text, "**Total:** 5 calls across all primitives")
	assert.Contains(t, text, "Recommendations")
	assert.Contains(t, text, "_Period: past week_")
	assert.True(t, strings.Contains(text, "### Resources (0 tracked, 0 calls)"))
}

func TestGenerateStatsPromptFiltered(t *testing.T) {
	tr := newTracker(t)
	ctx := context.Background()
	tr.Record(ctx, tracker.Observation{Name: "a_tool", Type: store.TypeTool, Success: true})

	text, err := GenerateStatsPrompt(ctx, tr, "", "tool", false)
	require.NoError(t, err)

	assert.Contains(t, text, "(filtered: tool)")
	assert.Contains(t, text, "### Tools")
	assert.NotContains(t, text, "### Prompts")
	assert.NotContains(t, text, "Recommendations")
	assert.Contains(t, text, "_Period: all time_")
}
