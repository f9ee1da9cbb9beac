package tags

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name            string
		in              []string
		filterStopwords bool
		want            []string
	}{
		{
			name: "CaseAndWhitespace",
			in:   []string{"Test", "test", "  HELLO  ", "world", ""},
			want: []string{"test", "hello", "world"},
		},
		{
			name:            "Stopwords",
			in:              []string{"convert", "to", "celsius"},
			filterStopwords: true,
			want:            []string{"convert", "celsius"},
		},
		{
			name:            "StopwordsKeptWithoutFilter",
			in:              []string{"convert", "to", "celsius"},
			filterStopwords: false,
			want:            []string{"convert", "to", "celsius"},
		},
		{
			name:            "UnderscoreExemptFromStopwordFilter",
			in:              []string{"get_weather", "get"},
			filterStopwords: true,
			want:            []string{"get_weather"},
		},
		{
			name: "InnerWhitespaceCollapsed",
			in:   []string{"two   words"},
			want: []string{"two words"},
		},
		{
			name: "Empty",
			in:   nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in, tt.filterStopwords)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	in := []string{"a", "B", "a"}
	once := Normalize(in, false)
	twice := Normalize(once, false)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("Normalize not idempotent (-once +twice):\n%s", diff)
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"fetch_weather_data", []string{"fetch", "weather", "data"}},
		{"the-api-to-data", []string{"api", "data"}},
		{"convert_to_celsius", []string{"convert", "celsius"}},
		{"", []string{}},
		{"---", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Extract(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestDeriveShortDescription(t *testing.T) {
	tests := []struct {
		name        string
		description string
		fallback    string
		want        string
	}{
		{
			name:        "FirstSentence",
			description: "Get weather data. Supports multiple formats.",
			fallback:    "get_weather",
			want:        "Get weather data.",
		},
		{
			name:     "FallbackHumanizesName",
			fallback: "my_cool_tool",
			want:     "My cool tool",
		},
		{
			name:        "WhitespaceCollapsed",
			description: "Does  a\n thing",
			fallback:    "x",
			want:        "Does a thing",
		},
		{
			name:     "EmptyEverything",
			fallback: "",
			want:     "No description available.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveShortDescription(tt.description, tt.fallback, 0)
			if got != tt.want {
				t.Errorf("DeriveShortDescription() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeriveShortDescriptionTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "verylongword "
	}
	got := DeriveShortDescription(long, "x", 40)
	if len(got) > 40 {
		t.Errorf("Result exceeds max length: %d chars", len(got))
	}
	if got[len(got)-3:] != "..." {
		t.Errorf("Truncated result should end with ellipsis: %q", got)
	}
}

func TestDeriveShortDescriptionTinyMaxLen(t *testing.T) {
	long := strings.Repeat("word ", 50)
	// Lengths too small for ellipsis truncation fall back to the default cap
	for _, maxLen := range []int{1, 2, 3} {
		got := DeriveShortDescription(long, "x", maxLen)
		if len([]rune(got)) > DefaultShortDescriptionLen {
			t.Errorf("maxLen=%d: result exceeds default cap: %d chars", maxLen, len([]rune(got)))
		}
	}
}

func TestDeriveShortDescriptionRuneSafeTruncation(t *testing.T) {
	long := strings.Repeat("héllo wörld ", 20)
	got := DeriveShortDescription(long, "x", 20)
	if !utf8.ValidString(got) {
		t.Errorf("Truncation split a multi-byte character: %q", got)
	}
	if n := len([]rune(got)); n > 20 {
		t.Errorf("Result exceeds max length: %d runes", n)
	}
	if got[len(got)-3:] != "..." {
		t.Errorf("Truncated result should end with ellipsis: %q", got)
	}
}

func TestParseJoinRoundTrip(t *testing.T) {
	in := []string{"api", "weather", "data"}
	got := Parse(Join(in))
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}

	if got := Parse(""); len(got) != 0 {
		t.Errorf("Parse(\"\") should be empty, got %v", got)
	}
	if got := Parse("a, ,b,"); len(got) != 2 {
		t.Errorf("Parse should drop empties, got %v", got)
	}
}
