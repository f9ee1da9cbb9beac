// Package tags provides tag normalization and extraction for the metadata
// catalog. All functions are pure and safe for concurrent use.
package tags

import (
	"strings"
)

// Stopwords filtered from auto-generated tags. Matches the fixed set used
// for name-derived tags; explicit caller-supplied tags are never filtered.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "get": {}, "has": {}, "have": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "this": {}, "to": {}, "was": {}, "will": {},
	"with": {},
}

// Normalize deduplicates tags into a stable, lowercase list.
//
// Handles whitespace collapse, case normalization, empty-string removal and
// duplicate removal preserving first-occurrence order. When filterStopwords
// is set, common stopwords are dropped unless the tag contains an underscore
// (a full tool name like "get_weather" is never a stopword).
func Normalize(raw []string, filterStopwords bool) []string {
	result := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, tag := range raw {
		normalized := strings.ToLower(strings.Join(strings.Fields(tag), " "))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		if filterStopwords && !strings.Contains(normalized, "_") {
			if _, stop := stopwords[normalized]; stop {
				continue
			}
		}
		result = append(result, normalized)
		seen[normalized] = struct{}{}
	}
	return result
}

// Extract derives tags from a primitive name by splitting on hyphen,
// underscore and whitespace, with stopwords removed.
//
//	Extract("fetch_weather_data") -> [fetch weather data]
//	Extract("the-api-to-data")    -> [api data]
func Extract(name string) []string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	return Normalize(words, true)
}

// Bounds for generated short descriptions. Truncation reserves three
// characters for the ellipsis, so anything shorter than minShortDescriptionLen
// falls back to the default.
const (
	DefaultShortDescriptionLen = 160
	minShortDescriptionLen     = 4
)

// DeriveShortDescription generates a compact summary suitable for quick
// scanning: the first sentence of the description, or a humanized form of
// the name when no description is available. Output never exceeds maxLen
// characters; truncation counts runes, never splitting a multi-byte
// character.
func DeriveShortDescription(description, fallbackName string, maxLen int) string {
	if maxLen < minShortDescriptionLen {
		maxLen = DefaultShortDescriptionLen
	}

	base := strings.Join(strings.Fields(description), " ")
	if base != "" {
		for _, delim := range []string{". ", "! ", "? "} {
			if idx := strings.Index(base, delim); idx != -1 {
				base = base[:idx+1]
				break
			}
		}
		if runes := []rune(base); len(runes) > maxLen {
			return strings.TrimRight(string(runes[:maxLen-3]), " ") + "..."
		}
		return base
	}

	// my_cool_tool -> "My cool tool"
	readable := strings.ReplaceAll(fallbackName, "_", " ")
	readable = strings.ReplaceAll(readable, "-", " ")
	readable = strings.TrimSpace(readable)
	if readable == "" {
		return "No description available."
	}
	return strings.ToUpper(readable[:1]) + strings.ToLower(readable[1:])
}

// Parse splits a comma-separated storage string into a tag list.
func Parse(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Join converts a tag list to the comma-separated storage form.
func Join(list []string) string {
	return strings.Join(list, ",")
}
