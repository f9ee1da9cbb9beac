package tools

import (
	"context"

	"mcpstat/internal/tracker"
)

// Handler dispatches built-in stats tool calls to a Tracker. Register the
// definitions from Definitions, then route matching calls here; anything
// else returns nil so the host's own dispatch continues.
type Handler struct {
	tracker *tracker.Tracker
	prefix  string
	names   map[string]struct{}
}

// NewHandler binds the built-in tools to a tracker instance.
func NewHandler(tr *tracker.Tracker, prefix string) *Handler {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Handler{
		tracker: tr,
		prefix:  prefix,
		names: map[string]struct{}{
			prefix + "_tool_usage_stats": {},
			prefix + "_tool_catalog":     {},
		},
	}
}

// IsStatsTool reports whether name is one of the built-in stats tools.
func (h *Handler) IsStatsTool(name string) bool {
	_, ok := h.names[name]
	return ok
}

// Handle executes a built-in tool call. Arguments arrive as decoded JSON
// (numbers as float64). Returns nil with no error when name is not a
// built-in tool.
func (h *Handler) Handle(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case h.prefix + "_tool_usage_stats":
		return h.tracker.GetStats(ctx, tracker.StatsQuery{
			IncludeZero: boolArg(args, "include_zero_usage", true),
			Limit:       intArg(args, "limit"),
			TypeFilter:  stringArg(args, "type_filter"),
		})

	case h.prefix + "_tool_catalog":
		return h.tracker.GetCatalog(ctx, tracker.CatalogQuery{
			Tags:         stringSliceArg(args, "tags"),
			Query:        stringArg(args, "query"),
			IncludeUsage: boolArg(args, "include_usage", true),
			Limit:        intArg(args, "limit"),
		})
	}
	return nil, nil
}

func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func stringSliceArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
