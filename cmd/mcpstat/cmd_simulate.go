package main

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mcpstat/internal/store"
	"mcpstat/internal/tracker"
)

var (
	simCalls   int
	simWorkers int
)

// Sample workload: a handful of plausible primitives with skewed weights so
// the resulting stats have an interesting shape.
var simPrimitives = []struct {
	name   string
	ptype  string
	weight int
}{
	{"fetch_weather", store.TypeTool, 6},
	{"send_email", store.TypeTool, 3},
	{"search_docs", store.TypeTool, 5},
	{"convert_units", store.TypeTool, 1},
	{"daily_summary", store.TypePrompt, 2},
	{"config_file", store.TypeResource, 1},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate a synthetic concurrent workload",
	Long: `Records a batch of synthetic invocations from concurrent workers
against the configured database. Useful for demo data and for verifying that
concurrent recording loses no updates.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simCalls, "n", 200, "Number of invocations to record")
	simulateCmd.Flags().IntVar(&simWorkers, "workers", 8, "Concurrent workers")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	tr, err := openTracker()
	if err != nil {
		return err
	}
	defer tr.Close()

	runID := uuid.NewString()
	logger.Info("simulation starting",
		zap.String("run_id", runID),
		zap.Int("calls", simCalls),
		zap.Int("workers", simWorkers))

	// Weighted pick table
	var picks []int
	for i, p := range simPrimitives {
		for w := 0; w < p.weight; w++ {
			picks = append(picks, i)
		}
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(simWorkers)

	for i := 0; i < simCalls; i++ {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			simulateOne(ctx, tr, picks)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	resp, err := tr.GetStats(cmd.Context(), tracker.StatsQuery{IncludeZero: true})
	if err != nil {
		return err
	}
	fmt.Printf("Run %s complete: %d calls recorded across %d primitives\n",
		runID, resp.TotalCalls, resp.TrackedCount)
	return nil
}

func simulateOne(ctx context.Context, tr *tracker.Tracker, picks []int) {
	p := simPrimitives[picks[rand.Intn(len(picks))]]

	duration := int64(rand.Intn(900) + 20)
	obs := tracker.Observation{
		Name:          p.name,
		Type:          p.ptype,
		Success:       rand.Intn(20) != 0,
		ResponseChars: int64(rand.Intn(4000)),
		DurationMs:    &duration,
	}
	if !obs.Success {
		obs.ErrorMsg = "simulated failure"
	}
	tr.Record(ctx, obs)
}
