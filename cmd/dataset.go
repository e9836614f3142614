package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tradepanel/internal/pipeline"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Emit the econometric CSV per period",
	Long: `Joins each period's cached export table with its cached disaster
panel and writes the (ISO, Year, product) econometric dataset CSV.
Requires the exports and disasters stages to have run first.`,
	RunE: runDataset,
}

func init() {
	rootCmd.AddCommand(datasetCmd)
}

func runDataset(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	results := pipeline.BuildDataset(ctx, cfg, store)
	if pipeline.Succeeded(results) == 0 {
		return eris.New("dataset: no period succeeded")
	}
	return nil
}
