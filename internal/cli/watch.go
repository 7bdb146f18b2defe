package cli

import (
	"github.com/spf13/cobra"

	"market-miner/internal/app"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Repeat the configured scan on an interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Watch(cmd.Context(), app.ScanOptions{})
	},
}
