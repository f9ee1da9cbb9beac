package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"mcpstat/internal/tracker"
)

var syncCmd = &cobra.Command{
	Use:   "sync <definitions.yaml>",
	Short: "Sync the metadata catalog from a definitions file",
	Long: `Reads a YAML list of primitive definitions (name, description,
optional tags) and makes the catalog mirror it. Tags are derived from names
unless pinned by a preset; with cleanup_orphans enabled in the config,
metadata for names absent from the file is removed. Usage history is never
touched.

Example definitions file:

  - name: fetch_weather
    description: Fetches the current weather. Supports many cities.
    tags: [api]
  - name: send_email
    description: Sends an email.`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read definitions: %w", err)
	}

	var defs []tracker.Definition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return fmt.Errorf("failed to parse definitions: %w", err)
	}
	for i, def := range defs {
		if def.Name == "" {
			return fmt.Errorf("definition %d has no name", i)
		}
	}

	tr, err := openTracker()
	if err != nil {
		return err
	}
	defer tr.Close()

	if err := tr.SyncDefinitions(cmd.Context(), defs); err != nil {
		return err
	}

	logger.Info("catalog synced",
		zap.Int("definitions", len(defs)),
		zap.Bool("cleanup_orphans", cfg.Sync.CleanupOrphans))
	fmt.Printf("Synced %d definitions into %s\n", len(defs), cfg.Database.Path)
	return nil
}
