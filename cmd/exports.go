package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tradepanel/internal/pipeline"
)

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "Collect and cache export records per period",
	Long: `Loads the Comtrade export CSV files covering each configured period,
validates and normalizes the rows, and caches the result per period.

Examples:
  # Collect exports for all configured periods
  exports

  # Recompute, ignoring cached results
  exports --clear-cache`,
	RunE: runExports,
}

func init() {
	exportsCmd.Flags().Bool("clear-cache", false, "discard cached export tables before collecting")
	rootCmd.AddCommand(exportsCmd)
}

func runExports(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	clearCache, _ := cmd.Flags().GetBool("clear-cache")
	results := pipeline.CollectExports(ctx, cfg, store, clearCache)
	if pipeline.Succeeded(results) == 0 {
		return eris.New("exports: no period succeeded")
	}
	return nil
}
