package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tradepanel/internal/pipeline"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run all stages end to end",
	Long: `Runs the exports, disasters, and dataset stages sequentially for
every configured period. Periods fail independently; the command exits
non-zero only when no period produces a dataset.

Examples:
  # Full run against cached intermediates
  pipeline

  # Recompute everything from source files
  pipeline --clear-cache

  # Download missing export years before running
  pipeline --fetch-missing`,
	RunE: runPipeline,
}

func init() {
	f := pipelineCmd.Flags()
	f.Bool("clear-cache", false, "discard all cached stages before running")
	f.Bool("fetch-missing", false, "download missing export years from the Comtrade API first")
	rootCmd.AddCommand(pipelineCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	clearCache, _ := cmd.Flags().GetBool("clear-cache")
	fetchMissing, _ := cmd.Flags().GetBool("fetch-missing")

	if fetchMissing {
		quotaExceeded, err := pipeline.FetchMissingExports(ctx, cfg)
		if err != nil {
			return err
		}
		if quotaExceeded {
			zap.L().Warn("continuing with incomplete export coverage")
		}
	}

	exportResults := pipeline.CollectExports(ctx, cfg, store, clearCache)
	disasterResults := pipeline.BuildDisasters(ctx, cfg, store, clearCache)
	datasetResults := pipeline.BuildDataset(ctx, cfg, store)

	if pipeline.Succeeded(datasetResults) == 0 {
		return eris.Errorf("pipeline: no period succeeded (exports %d/%d, disasters %d/%d ok)",
			pipeline.Succeeded(exportResults), len(exportResults),
			pipeline.Succeeded(disasterResults), len(disasterResults))
	}
	return nil
}
