// Package reconcile merges one item's per-server records into
// cross-server low/high/average statistics.
package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"

	"market-miner/internal/fetcher"
	"market-miner/internal/storage"
)

// ServerRecord pairs a record with the server it was fetched from.
type ServerRecord struct {
	Server string
	Record *fetcher.ItemRecord
}

// Compare computes the unit-price comparison for one item. Records with
// a non-positive price are dropped first; fewer than two priced servers
// yields nil. The mean covers every priced server, not just the two
// extremes. Servers are walked in lexicographic order, so ties on the
// extreme prices resolve to the first server in that order.
func Compare(itemID int, records []ServerRecord) *storage.ComparisonRow {
	return compare(itemID, records, storage.ScopeUnit, func(r *fetcher.ItemRecord) int64 {
		return r.Price
	})
}

// CompareStacks is the independent reconciliation over stack prices.
func CompareStacks(itemID int, records []ServerRecord) *storage.ComparisonRow {
	return compare(itemID, records, storage.ScopeStack, func(r *fetcher.ItemRecord) int64 {
		return r.StackPrice
	})
}

func compare(itemID int, records []ServerRecord, scope string, price func(*fetcher.ItemRecord) int64) *storage.ComparisonRow {
	priced := make([]ServerRecord, 0, len(records))
	for _, sr := range records {
		if sr.Record != nil && price(sr.Record) > 0 {
			priced = append(priced, sr)
		}
	}
	if len(priced) < 2 {
		return nil
	}

	sort.Slice(priced, func(i, j int) bool {
		return priced[i].Server < priced[j].Server
	})

	lowest := priced[0]
	highest := priced[0]
	sum := decimal.Zero
	for _, sr := range priced {
		p := price(sr.Record)
		if p < price(lowest.Record) {
			lowest = sr
		}
		if p > price(highest.Record) {
			highest = sr
		}
		sum = sum.Add(decimal.NewFromInt(p))
	}

	average := sum.Div(decimal.NewFromInt(int64(len(priced)))).Round(0).IntPart()

	base := priced[0].Record
	return &storage.ComparisonRow{
		ItemID:          itemID,
		Name:            base.Name,
		Category:        base.Category,
		Scope:           scope,
		LowestPrice:     price(lowest.Record),
		LowestServer:    lowest.Server,
		HighestPrice:    price(highest.Record),
		HighestServer:   highest.Server,
		AveragePrice:    average,
		PriceDifference: price(highest.Record) - price(lowest.Record),
		ServerCount:     len(priced),
	}
}
