// Package storage persists scan results. Two backends exist: CSV files
// (the default, mergeable with spreadsheets and older tooling) and
// PostgreSQL for setups that already run a database.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured indicates the store was opened without a target.
var ErrNotConfigured = errors.New("storage: not configured")

// ItemStore persists per-(item, server) rows. MergeItems must preserve
// rows from earlier runs whose key is untouched by the new rows.
type ItemStore interface {
	MergeItems(ctx context.Context, rows []ItemRow) error
	ListItems(ctx context.Context) ([]ItemRow, error)
}

// ComparisonStore persists cross-server comparison rows with the same
// merge contract, keyed (itemid, scope).
type ComparisonStore interface {
	MergeComparisons(ctx context.Context, rows []ComparisonRow) error
	ListComparisons(ctx context.Context) ([]ComparisonRow, error)
}

// Store is the full persistence surface a backend provides.
type Store interface {
	ItemStore
	ComparisonStore
	Close()
}

func itemKey(id int, suffix string) string {
	return fmt.Sprintf("%d|%s", id, suffix)
}

// mergeItemRows computes new-overwrites-old entirely in memory; callers
// write the result in one replace so an interrupted write never leaves
// fewer rows than before.
func mergeItemRows(existing, fresh []ItemRow) []ItemRow {
	merged := make(map[string]int, len(existing)+len(fresh))
	out := make([]ItemRow, 0, len(existing)+len(fresh))
	for _, row := range existing {
		merged[row.Key()] = len(out)
		out = append(out, row)
	}
	for _, row := range fresh {
		if idx, ok := merged[row.Key()]; ok {
			out[idx] = row
			continue
		}
		merged[row.Key()] = len(out)
		out = append(out, row)
	}
	return out
}

func mergeComparisonRows(existing, fresh []ComparisonRow) []ComparisonRow {
	merged := make(map[string]int, len(existing)+len(fresh))
	out := make([]ComparisonRow, 0, len(existing)+len(fresh))
	for _, row := range existing {
		merged[row.Key()] = len(out)
		out = append(out, row)
	}
	for _, row := range fresh {
		if idx, ok := merged[row.Key()]; ok {
			out[idx] = row
			continue
		}
		merged[row.Key()] = len(out)
		out = append(out, row)
	}
	return out
}
