package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mcpstat/internal/tracker"
)

var (
	catalogTags    []string
	catalogQuery   string
	catalogNoUsage bool
	catalogLimit   int
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the metadata catalog",
	Long: `Lists cataloged primitives with their tags and descriptions.
Tag filters use AND semantics; --query is a substring search across names,
tags, and descriptions.`,
	RunE: runCatalog,
}

func init() {
	catalogCmd.Flags().StringSliceVar(&catalogTags, "tags", nil, "Only show entries carrying all of these tags")
	catalogCmd.Flags().StringVar(&catalogQuery, "query", "", "Substring search")
	catalogCmd.Flags().BoolVar(&catalogNoUsage, "no-usage", false, "Omit usage counts and timestamps")
	catalogCmd.Flags().IntVar(&catalogLimit, "limit", 0, "Maximum entries to show (0 = all)")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	tr, err := openTracker()
	if err != nil {
		return err
	}
	defer tr.Close()

	resp, err := tr.GetCatalog(cmd.Context(), tracker.CatalogQuery{
		Tags:         catalogTags,
		Query:        catalogQuery,
		IncludeUsage: !catalogNoUsage,
		Limit:        catalogLimit,
	})
	if err != nil {
		return err
	}

	tbl := newTable("Catalog", "NAME", "TAGS", "CALLS", "DESCRIPTION")
	for _, e := range resp.Results {
		calls := "-"
		if e.CallCount != nil {
			calls = strconv.FormatInt(*e.CallCount, 10)
		}
		tbl.addRow(e.Name, strings.Join(e.Tags, ","), calls, e.ShortDescription)
	}
	fmt.Println(tbl.render())

	fmt.Println(summaryLine("Matched", fmt.Sprintf("%d of %d", resp.Matched, resp.TotalTracked)))
	if resp.TotalCalls != nil {
		fmt.Println(summaryLine("Total calls", strconv.FormatInt(*resp.TotalCalls, 10)))
	}
	fmt.Println(summaryLine("All tags", strings.Join(resp.AllTags, ", ")))
	return nil
}
