package cli

import (
	"github.com/spf13/cobra"

	"market-miner/internal/app"
)

var (
	scanFrom    int
	scanTo      int
	scanServers []string
	scanWorkers int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan over the configured item-id range",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ScanOptions{
			FromID:  scanFrom,
			ToID:    scanTo,
			Servers: scanServers,
			Workers: scanWorkers,
		}
		return getApp().Scan(cmd.Context(), opts)
	},
}

func init() {
	scanCmd.Flags().IntVar(&scanFrom, "from", 0, "First item id (inclusive; defaults to config)")
	scanCmd.Flags().IntVar(&scanTo, "to", 0, "Last item id (inclusive; defaults to config)")
	scanCmd.Flags().StringSliceVar(&scanServers, "servers", nil, "Servers to query (defaults to config)")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "Worker count, 1-10 (defaults to config)")
}
