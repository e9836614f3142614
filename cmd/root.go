package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tradepanel/internal/cache"
	"github.com/sells-group/tradepanel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tradepanel",
	Short: "Country-product-year trade and disaster panel builder",
	Long:  "Builds per-period econometric datasets merging Comtrade export records, EM-DAT/GeoMet natural-disaster data, and World Bank demographic indicators.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// openStore opens the period cache under the configured cache dir.
func openStore(ctx context.Context) (*cache.Store, error) {
	return cache.Open(ctx, cfg.CacheDir)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
