package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"

	"market-miner/internal/storage"
)

// Export writes the largest cross-server spreads as CSV and/or a PNG
// bar chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Top <= 0 {
		opts.Top = a.Config.Export.TopSpreads
	}
	if opts.Scope == "" {
		opts.Scope = storage.ScopeUnit
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	comparisons, err := store.ListComparisons(ctx)
	if err != nil {
		return err
	}

	scoped := comparisons[:0:0]
	for _, cmp := range comparisons {
		if cmp.Scope == opts.Scope {
			scoped = append(scoped, cmp)
		}
	}
	if len(scoped) == 0 {
		a.Logger.Info().Str("scope", opts.Scope).Msg("no comparisons to export")
		return nil
	}

	sort.Slice(scoped, func(i, j int) bool {
		if scoped[i].PriceDifference != scoped[j].PriceDifference {
			return scoped[i].PriceDifference > scoped[j].PriceDifference
		}
		return scoped[i].ItemID < scoped[j].ItemID
	})
	if len(scoped) > opts.Top {
		scoped = scoped[:opts.Top]
	}

	a.Logger.Info().Int("total", len(comparisons)).Int("exported", len(scoped)).Msg("exporting spreads")

	if opts.CSVPath != "" {
		if err := writeSpreadsCSV(opts.CSVPath, scoped); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeSpreadsPNG(opts.PNGPath, scoped); err != nil {
			return err
		}
	}
	return nil
}

func writeSpreadsCSV(path string, rows []storage.ComparisonRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"itemid", "name", "category", "lowest_price", "lowest_server", "highest_price", "highest_server", "average_price", "price_difference", "server_count"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			strconv.Itoa(row.ItemID),
			row.Name,
			row.Category,
			strconv.FormatInt(row.LowestPrice, 10),
			row.LowestServer,
			strconv.FormatInt(row.HighestPrice, 10),
			row.HighestServer,
			strconv.FormatInt(row.AveragePrice, 10),
			strconv.FormatInt(row.PriceDifference, 10),
			strconv.Itoa(row.ServerCount),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSpreadsPNG(path string, rows []storage.ComparisonRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	bars := make([]chart.Value, 0, len(rows))
	for _, row := range rows {
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s (%d)", row.Name, row.ItemID),
			Value: float64(row.PriceDifference),
		})
	}

	graph := chart.BarChart{
		Title:    "Cross-server price spread (gil)",
		Width:    1280,
		Height:   720,
		BarWidth: 40,
		Bars:     bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
