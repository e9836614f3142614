package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/tradepanel/internal/pipeline"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download missing export years from the Comtrade API",
	Long: `Determines which years of each configured period lack an export
CSV and downloads them from the Comtrade preview API, one file per
year. Stops on quota exhaustion, keeping every completed year.`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	quotaExceeded, err := pipeline.FetchMissingExports(ctx, cfg)
	if err != nil {
		return err
	}
	if quotaExceeded {
		fmt.Println("Fetch incomplete: API quota exhausted. Completed years were kept.")
	}
	return nil
}
