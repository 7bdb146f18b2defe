package cli

import (
	"github.com/spf13/cobra"

	"market-miner/internal/app"
)

var (
	exportCSVPath string
	exportPNGPath string
	exportTop     int
	exportScope   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the largest cross-server spreads as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			CSVPath: exportCSVPath,
			PNGPath: exportPNGPath,
			Top:     exportTop,
			Scope:   exportScope,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().IntVar(&exportTop, "top", 0, "Number of spreads to export (defaults to config)")
	exportCmd.Flags().StringVar(&exportScope, "scope", "unit", "Comparison scope: unit or stack")
}
