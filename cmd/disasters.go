package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tradepanel/internal/pipeline"
)

var disastersCmd = &cobra.Command{
	Use:   "disasters",
	Short: "Build and cache the disaster panel per period",
	Long: `Loads the EM-DAT event data, the GeoMet intensity data, and the
demographic covariates, builds the validated country-year disaster
panel for each configured period, and caches it.

Examples:
  # Build the panel for all configured periods
  disasters

  # Recompute, ignoring cached results
  disasters --clear-cache`,
	RunE: runDisasters,
}

func init() {
	disastersCmd.Flags().Bool("clear-cache", false, "discard cached disaster panels before building")
	rootCmd.AddCommand(disastersCmd)
}

func runDisasters(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	clearCache, _ := cmd.Flags().GetBool("clear-cache")
	results := pipeline.BuildDisasters(ctx, cfg, store, clearCache)
	if pipeline.Succeeded(results) == 0 {
		return eris.New("disasters: no period succeeded")
	}
	return nil
}
