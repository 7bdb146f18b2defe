package cli

import (
	"github.com/spf13/cobra"

	"market-miner/internal/app"
)

var (
	showLimit       int
	showComparisons bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print persisted item rows or comparisons",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ShowOptions{
			Limit:       showLimit,
			Comparisons: showComparisons,
		}
		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 50, "Maximum rows to print (0 = all)")
	showCmd.Flags().BoolVar(&showComparisons, "comparisons", false, "Show cross-server comparisons instead of item rows")
}
