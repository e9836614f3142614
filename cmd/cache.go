package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the period cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List cached stage artifacts",
	RunE:  runCacheStatus,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached artifacts",
	Long: `Removes cached stage artifacts. With --period, only that period's
entries are removed; otherwise the whole cache is cleared.`,
	RunE: runCacheClear,
}

func init() {
	cacheClearCmd.Flags().String("period", "", "period key to clear (e.g. 1979_2000)")
	cacheCmd.AddCommand(cacheStatusCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStatus(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Entries(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("Cache is empty.")
		return nil
	}

	fmt.Printf("%-12s %-12s %-8s %-20s\n", "Stage", "Period", "Schema", "Created")
	for _, e := range entries {
		fmt.Printf("%-12s %-12s %-8d %-20s\n",
			e.Stage, e.PeriodKey, e.SchemaVersion, e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	periodKey, _ := cmd.Flags().GetString("period")
	if periodKey != "" {
		if err := store.Clear(ctx, periodKey); err != nil {
			return err
		}
		fmt.Printf("Cleared cache for period %s.\n", periodKey)
		return nil
	}
	if err := store.ClearAll(ctx); err != nil {
		return err
	}
	fmt.Println("Cleared all cached artifacts.")
	return nil
}
