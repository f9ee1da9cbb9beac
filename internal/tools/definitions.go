// Package tools adapts the tracker's query API into name/schema/handler
// triples an RPC server can register directly: two built-in stats tools and
// a usage-summary prompt. It consumes the tracker's public contract only.
package tools

import "fmt"

// DefaultPrefix yields tool names like get_tool_usage_stats.
const DefaultPrefix = "get"

// ToolDefinition is one registrable tool: name, description, and a JSON
// Schema for its input.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// PromptArgument describes one argument of a registrable prompt.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// PromptDefinition is one registrable prompt.
type PromptDefinition struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Arguments   []PromptArgument `json:"arguments"`
}

// Definitions builds the built-in tool definitions. The prefix keeps names
// from colliding with the host server's own tools.
func Definitions(prefix, serverName string) []ToolDefinition {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return []ToolDefinition{
		{
			Name:        prefix + "_tool_usage_stats",
			Description: fmt.Sprintf("Get usage statistics for %s (call counts, latency, and token usage)", serverName),
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"include_zero_usage": map[string]any{
						"type":        "boolean",
						"default":     true,
						"description": "Include items that have never been invoked",
					},
					"type_filter": map[string]any{
						"type":        "string",
						"enum":        []string{"tool", "prompt", "resource"},
						"description": "Filter by primitive type (omit for all types)",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of items to return (sorted by usage)",
					},
				},
				"required": []string{},
			},
		},
		{
			Name:        prefix + "_tool_catalog",
			Description: fmt.Sprintf("List %s tools with tags, usage statistics, and text search", serverName),
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"tags": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Filter to tools containing all provided tags",
					},
					"query": map[string]any{
						"type":        "string",
						"description": "Text search across names, descriptions, and tags",
					},
					"include_usage": map[string]any{
						"type":        "boolean",
						"default":     true,
						"description": "Include usage counts and timestamps",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum entries to return",
					},
				},
				"required": []string{},
			},
		},
	}
}

// StatsPromptDefinition builds the registrable usage-summary prompt.
func StatsPromptDefinition(promptName, serverName string) PromptDefinition {
	return PromptDefinition{
		Name: promptName,
		Description: fmt.Sprintf(
			"Generate %s usage statistics summary with sections for tools, resources, and prompts", serverName),
		Arguments: []PromptArgument{
			{
				Name:        "period",
				Description: "Time period description (e.g., 'past week', 'since deployment')",
				Required:    false,
			},
			{
				Name:        "type",
				Description: "Filter by type: 'all' (default), 'tool', 'resource', or 'prompt'",
				Required:    false,
			},
			{
				Name:        "include_recommendations",
				Description: "Include adoption recommendations (default: true)",
				Required:    false,
			},
		},
	}
}
