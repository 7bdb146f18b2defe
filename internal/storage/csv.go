package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var itemHeader = []string{
	"itemid", "name", "price", "stack_price", "sold_per_day",
	"stack_sold_per_day", "category", "stackable", "server",
}

var comparisonHeader = []string{
	"itemid", "name", "category", "scope", "lowest_price", "lowest_server",
	"highest_price", "highest_server", "average_price", "price_difference",
	"server_count",
}

// CSVStore keeps items and comparisons in two CSV files. Every merge is
// computed fully in memory and committed with a temp-file rename.
type CSVStore struct {
	itemsPath       string
	comparisonsPath string
}

// NewCSVStore builds a store over the given file paths.
func NewCSVStore(itemsPath, comparisonsPath string) *CSVStore {
	return &CSVStore{itemsPath: itemsPath, comparisonsPath: comparisonsPath}
}

// MergeItems folds fresh rows into the items file.
func (s *CSVStore) MergeItems(ctx context.Context, rows []ItemRow) error {
	if s.itemsPath == "" {
		return ErrNotConfigured
	}
	existing, err := s.ListItems(ctx)
	if err != nil {
		return err
	}
	merged := mergeItemRows(existing, rows)

	records := make([][]string, 0, len(merged)+1)
	records = append(records, itemHeader)
	for _, row := range merged {
		records = append(records, []string{
			strconv.Itoa(row.ItemID),
			row.Name,
			strconv.FormatInt(row.Price, 10),
			strconv.FormatInt(row.StackPrice, 10),
			strconv.FormatFloat(row.SoldPerDay, 'f', -1, 64),
			strconv.FormatFloat(row.StackSoldPerDay, 'f', -1, 64),
			row.Category,
			row.Stackable,
			row.Server,
		})
	}
	return writeReplaceCSV(s.itemsPath, records)
}

// ListItems reads every persisted item row; a missing file is empty.
func (s *CSVStore) ListItems(ctx context.Context) ([]ItemRow, error) {
	if s.itemsPath == "" {
		return nil, ErrNotConfigured
	}
	records, err := readCSV(s.itemsPath)
	if err != nil {
		return nil, err
	}

	rows := make([]ItemRow, 0, len(records))
	for _, rec := range records {
		if len(rec) < len(itemHeader) {
			continue
		}
		id, err := strconv.Atoi(rec[0])
		if err != nil {
			continue
		}
		price, _ := strconv.ParseInt(rec[2], 10, 64)
		stackPrice, _ := strconv.ParseInt(rec[3], 10, 64)
		soldPerDay, _ := strconv.ParseFloat(rec[4], 64)
		stackSoldPerDay, _ := strconv.ParseFloat(rec[5], 64)
		rows = append(rows, ItemRow{
			ItemID:          id,
			Name:            rec[1],
			Price:           price,
			StackPrice:      stackPrice,
			SoldPerDay:      soldPerDay,
			StackSoldPerDay: stackSoldPerDay,
			Category:        rec[6],
			Stackable:       rec[7],
			Server:          rec[8],
		})
	}
	return rows, nil
}

// MergeComparisons folds fresh rows into the comparisons file.
func (s *CSVStore) MergeComparisons(ctx context.Context, rows []ComparisonRow) error {
	if s.comparisonsPath == "" {
		return ErrNotConfigured
	}
	existing, err := s.ListComparisons(ctx)
	if err != nil {
		return err
	}
	merged := mergeComparisonRows(existing, rows)

	records := make([][]string, 0, len(merged)+1)
	records = append(records, comparisonHeader)
	for _, row := range merged {
		records = append(records, []string{
			strconv.Itoa(row.ItemID),
			row.Name,
			row.Category,
			row.Scope,
			strconv.FormatInt(row.LowestPrice, 10),
			row.LowestServer,
			strconv.FormatInt(row.HighestPrice, 10),
			row.HighestServer,
			strconv.FormatInt(row.AveragePrice, 10),
			strconv.FormatInt(row.PriceDifference, 10),
			strconv.Itoa(row.ServerCount),
		})
	}
	return writeReplaceCSV(s.comparisonsPath, records)
}

// ListComparisons reads every persisted comparison row.
func (s *CSVStore) ListComparisons(ctx context.Context) ([]ComparisonRow, error) {
	if s.comparisonsPath == "" {
		return nil, ErrNotConfigured
	}
	records, err := readCSV(s.comparisonsPath)
	if err != nil {
		return nil, err
	}

	rows := make([]ComparisonRow, 0, len(records))
	for _, rec := range records {
		if len(rec) < len(comparisonHeader) {
			continue
		}
		id, err := strconv.Atoi(rec[0])
		if err != nil {
			continue
		}
		lowest, _ := strconv.ParseInt(rec[4], 10, 64)
		highest, _ := strconv.ParseInt(rec[6], 10, 64)
		average, _ := strconv.ParseInt(rec[8], 10, 64)
		diff, _ := strconv.ParseInt(rec[9], 10, 64)
		count, _ := strconv.Atoi(rec[10])
		rows = append(rows, ComparisonRow{
			ItemID:          id,
			Name:            rec[1],
			Category:        rec[2],
			Scope:           rec[3],
			LowestPrice:     lowest,
			LowestServer:    rec[5],
			HighestPrice:    highest,
			HighestServer:   rec[7],
			AveragePrice:    average,
			PriceDifference: diff,
			ServerCount:     count,
		})
	}
	return rows, nil
}

// Close is a no-op for the CSV backend.
func (s *CSVStore) Close() {}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) > 0 {
		records = records[1:] // header
	}
	return records, nil
}

func writeReplaceCSV(path string, records [][]string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".csv-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.WriteAll(records); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

var _ Store = (*CSVStore)(nil)
