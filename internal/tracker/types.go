package tracker

// Observation is one invocation event. Numeric fields are additive deltas;
// zero means "add nothing". DurationMs is a pointer because a zero-millisecond
// sample still moves the min/max bounds, so absent and zero must differ.
type Observation struct {
	Name          string
	Type          string
	Success       bool
	ErrorMsg      string
	ResponseChars int64
	InputTokens   int64
	OutputTokens  int64
	DurationMs    *int64
}

// StatsQuery narrows a GetStats call.
type StatsQuery struct {
	IncludeZero bool
	Limit       int
	TypeFilter  string
}

// StatsEntry is one per-primitive row of a stats response, with derived
// averages computed at read time.
type StatsEntry struct {
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	CallCount        int64    `json:"call_count"`
	LastAccessed     string   `json:"last_accessed"`
	Tags             []string `json:"tags"`
	ShortDescription string   `json:"short_description"`
	FullDescription  string   `json:"full_description,omitempty"`

	TotalInputTokens   int64  `json:"total_input_tokens"`
	TotalOutputTokens  int64  `json:"total_output_tokens"`
	TotalResponseChars int64  `json:"total_response_chars"`
	EstimatedTokens    int64  `json:"estimated_tokens"`
	TotalDurationMs    int64  `json:"total_duration_ms"`
	MinDurationMs      *int64 `json:"min_duration_ms"`
	MaxDurationMs      *int64 `json:"max_duration_ms"`

	AvgTokensPerCall int64 `json:"avg_tokens_per_call"`
	AvgLatencyMs     int64 `json:"avg_latency_ms"`
}

// TokenSummary rolls token totals up across a filtered stats set.
// HasActualTokens distinguishes "measured" from "estimated only".
type TokenSummary struct {
	TotalInputTokens     int64 `json:"total_input_tokens"`
	TotalOutputTokens    int64 `json:"total_output_tokens"`
	TotalEstimatedTokens int64 `json:"total_estimated_tokens"`
	HasActualTokens      bool  `json:"has_actual_tokens"`
}

// LatencySummary rolls duration totals up across a filtered stats set.
type LatencySummary struct {
	TotalDurationMs int64 `json:"total_duration_ms"`
	HasLatencyData  bool  `json:"has_latency_data"`
}

// StatsResponse is the GetStats result. Summary fields cover the full
// filtered set even when Limit truncated the Stats list.
type StatsResponse struct {
	TrackedCount int64          `json:"tracked_count"`
	TotalCalls   int64          `json:"total_calls"`
	ZeroCount    int64          `json:"zero_count"`
	LatestAccess *string        `json:"latest_access"`
	Tokens       TokenSummary   `json:"token_summary"`
	Latency      LatencySummary `json:"latency_summary"`
	Stats        []StatsEntry   `json:"stats"`
}

// TypeEntry is one row of a by-type grouping.
type TypeEntry struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	CallCount    int64  `json:"call_count"`
	LastAccessed string `json:"last_accessed"`
}

// TypeSummary is the per-type rollup.
type TypeSummary struct {
	Count      int64 `json:"count"`
	TotalCalls int64 `json:"total_calls"`
}

// TypeBreakdown groups all usage rows by primitive type. ByType always
// carries the three known types, empty lists included.
type TypeBreakdown struct {
	ByType     map[string][]TypeEntry `json:"by_type"`
	Summary    map[string]TypeSummary `json:"summary"`
	TotalCalls int64                  `json:"total_calls"`
	TotalItems int64                  `json:"total_items"`
}

// CatalogQuery narrows a GetCatalog call. Tags use AND semantics; Query is a
// case-insensitive substring match over name, tags, and descriptions.
type CatalogQuery struct {
	Tags         []string
	Query        string
	IncludeUsage bool
	Limit        int
}

// CatalogEntry is one catalog row. CallCount and LastAccessed are nil when
// usage was not requested; with usage requested, a primitive that was never
// called reports a zero count and a nil LastAccessed.
type CatalogEntry struct {
	Name             string   `json:"name"`
	ShortDescription string   `json:"short_description"`
	FullDescription  string   `json:"full_description,omitempty"`
	Tags             []string `json:"tags"`
	SchemaVersion    int      `json:"schema_version"`
	UpdatedAt        string   `json:"updated_at"`
	CallCount        *int64   `json:"call_count"`
	LastAccessed     *string  `json:"last_accessed"`
}

// CatalogFilters echoes the normalized filters a catalog query ran with.
type CatalogFilters struct {
	Tags  []string `json:"tags"`
	Query string   `json:"query,omitempty"`
}

// CatalogResponse is the GetCatalog result. AllTags is the sorted tag union
// over every metadata row regardless of filters. TotalCalls is nil when usage
// was not requested ("not computed", distinct from zero).
type CatalogResponse struct {
	TotalTracked int64          `json:"total_tracked"`
	Matched      int64          `json:"matched"`
	AllTags      []string       `json:"all_tags"`
	Filters      CatalogFilters `json:"filters"`
	IncludeUsage bool           `json:"include_usage"`
	Limit        int            `json:"limit,omitempty"`
	TotalCalls   *int64         `json:"total_calls"`
	Results      []CatalogEntry `json:"results"`
}

// Definition is one externally supplied primitive definition for metadata
// sync: name plus whatever description and explicit tags the host declares.
type Definition struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Preset pins tags and a short description for a name, overriding whatever
// sync would derive from the definition.
type Preset struct {
	Tags  []string `json:"tags" yaml:"tags"`
	Short string   `json:"short" yaml:"short"`
}
