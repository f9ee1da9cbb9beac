package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mcpstat/internal/tracker"
)

var (
	statsIncludeZero bool
	statsLimit       int
	statsType        string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics",
	Long: `Lists per-primitive usage aggregates: call counts, latency bounds,
and token totals, ordered by call count. The summary covers the full
filtered set even when --limit truncates the listing.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsIncludeZero, "include-zero", true, "Include items that have never been invoked")
	statsCmd.Flags().IntVar(&statsLimit, "limit", 0, "Maximum rows to show (0 = all)")
	statsCmd.Flags().StringVar(&statsType, "type", "", "Filter by primitive type (tool/prompt/resource)")
}

func runStats(cmd *cobra.Command, args []string) error {
	tr, err := openTracker()
	if err != nil {
		return err
	}
	defer tr.Close()

	resp, err := tr.GetStats(cmd.Context(), tracker.StatsQuery{
		IncludeZero: statsIncludeZero,
		Limit:       statsLimit,
		TypeFilter:  statsType,
	})
	if err != nil {
		return err
	}
	logger.Debug("stats query complete",
		zap.Int64("tracked", resp.TrackedCount),
		zap.Int64("total_calls", resp.TotalCalls))

	tbl := newTable("Usage statistics", "NAME", "TYPE", "CALLS", "AVG TOKENS", "AVG MS", "MIN MS", "MAX MS", "LAST ACCESSED")
	for _, s := range resp.Stats {
		tbl.addRow(
			s.Name,
			s.Type,
			strconv.FormatInt(s.CallCount, 10),
			strconv.FormatInt(s.AvgTokensPerCall, 10),
			strconv.FormatInt(s.AvgLatencyMs, 10),
			nullableMs(s.MinDurationMs),
			nullableMs(s.MaxDurationMs),
			s.LastAccessed,
		)
	}
	fmt.Println(tbl.render())

	latest := "-"
	if resp.LatestAccess != nil {
		latest = *resp.LatestAccess
	}
	fmt.Println(summaryLine("Tracked", strconv.FormatInt(resp.TrackedCount, 10)))
	fmt.Println(summaryLine("Total calls", strconv.FormatInt(resp.TotalCalls, 10)))
	fmt.Println(summaryLine("Never called", strconv.FormatInt(resp.ZeroCount, 10)))
	fmt.Println(summaryLine("Latest access", latest))
	fmt.Println(summaryLine("Tokens", tokenSummaryText(resp.Tokens)))
	if resp.Latency.HasLatencyData {
		fmt.Println(summaryLine("Total duration", fmt.Sprintf("%d ms", resp.Latency.TotalDurationMs)))
	}
	return nil
}

func nullableMs(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func tokenSummaryText(t tracker.TokenSummary) string {
	var parts []string
	if t.HasActualTokens {
		parts = append(parts, fmt.Sprintf("%d in / %d out (actual)", t.TotalInputTokens, t.TotalOutputTokens))
	}
	if t.TotalEstimatedTokens > 0 {
		parts = append(parts, fmt.Sprintf("%d estimated", t.TotalEstimatedTokens))
	}
	if len(parts) == 0 {
		return "none recorded"
	}
	return strings.Join(parts, ", ")
}
