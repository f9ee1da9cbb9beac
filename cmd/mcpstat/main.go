package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mcpstat/internal/config"
	"mcpstat/internal/logging"
	"mcpstat/internal/tracker"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mcpstat",
	Short: "mcpstat - usage analytics for MCP servers",
	Long: `mcpstat tracks tool/prompt/resource invocations for an MCP server,
persisting call counts, latency, and token usage to embedded SQLite with a
tag-based metadata catalog.

This CLI queries and maintains the statistics database; the library embeds
into the server itself.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return logging.Initialize(cfg.Logging.Dir, cfg.Logging.Settings)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// openTracker builds a Tracker from the loaded config.
func openTracker() (*tracker.Tracker, error) {
	presets := make(map[string]tracker.Preset, len(cfg.Presets))
	for name, p := range cfg.Presets {
		presets[name] = tracker.Preset{Tags: p.Tags, Short: p.Short}
	}
	return tracker.New(tracker.Config{
		ServerName:     cfg.ServerName,
		DBPath:         cfg.Database.Path,
		AuditLogPath:   cfg.Audit.Path,
		AuditEnabled:   cfg.Audit.Enabled,
		Presets:        presets,
		CleanupOrphans: cfg.Sync.CleanupOrphans,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "mcpstat.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
