package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"market-miner/internal/storage"
)

// Show prints persisted rows.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.Comparisons {
		return showComparisons(ctx, store, opts.Limit)
	}
	return showItems(ctx, store, opts.Limit)
}

func showItems(ctx context.Context, store storage.ItemStore, limit int) error {
	rows, err := store.ListItems(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no items found")
		return nil
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ItemID\tName\tPrice\tStack\tSold/Day\tCategory\tServer")

	for _, row := range rows {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%d\t%d\t%.2f\t%s\t%s\n",
			row.ItemID,
			sanitizeInline(row.Name),
			row.Price,
			row.StackPrice,
			row.SoldPerDay,
			sanitizeInline(row.Category),
			row.Server,
		)
	}

	writer.Flush()
	return nil
}

func showComparisons(ctx context.Context, store storage.ComparisonStore, limit int) error {
	rows, err := store.ListComparisons(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no comparisons found")
		return nil
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ItemID\tName\tScope\tLow\tLow Server\tHigh\tHigh Server\tAvg\tSpread\tServers")

	for _, row := range rows {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%d\t%s\t%d\t%s\t%d\t%d\t%d\n",
			row.ItemID,
			sanitizeInline(row.Name),
			row.Scope,
			row.LowestPrice,
			row.LowestServer,
			row.HighestPrice,
			row.HighestServer,
			row.AveragePrice,
			row.PriceDifference,
			row.ServerCount,
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
