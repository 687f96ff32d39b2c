package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "algebrix",
	Short: "Algebra practice problems, synced daily",
	Long: `algebrix keeps a local store of algebra practice problems in step with the
published daily batches and records the learner's answers and progress.`,
	SilenceUsage: true,
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides store.path and ALGEBRIX_DB)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default $XDG_CONFIG_HOME/algebrix/config.yaml)")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write sync metrics in Prometheus text format to this file on exit")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(solutionCmd)
	rootCmd.AddCommand(batchesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}
