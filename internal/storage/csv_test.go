package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *CSVStore {
	t.Helper()
	dir := t.TempDir()
	return NewCSVStore(
		filepath.Join(dir, "items.csv"),
		filepath.Join(dir, "cross_server_items.csv"),
	)
}

func TestMergeItemsPreservesForeignRows(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)

	seed := []ItemRow{
		{ItemID: 7, Name: "Lizard Egg", Price: 100, Server: "Asura", Stackable: "12"},
		{ItemID: 8, Name: "Bird Egg", Price: 90, Server: "Asura", Stackable: "No"},
	}
	if err := s.MergeItems(ctx, seed); err != nil {
		t.Fatalf("MergeItems: %v", err)
	}

	// A run against another server must not disturb Asura's rows; a fresh
	// Asura row for the same item replaces the old one.
	update := []ItemRow{
		{ItemID: 7, Name: "Lizard Egg", Price: 140, Server: "Bahamut", Stackable: "12"},
		{ItemID: 8, Name: "Bird Egg", Price: 95, Server: "Asura", Stackable: "No"},
	}
	if err := s.MergeItems(ctx, update); err != nil {
		t.Fatalf("MergeItems: %v", err)
	}

	rows, err := s.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (既有行保留, 同键覆盖)", len(rows))
	}

	byKey := map[string]ItemRow{}
	for _, row := range rows {
		byKey[row.Key()] = row
	}
	if got := byKey["7|Asura"]; got.Price != 100 {
		t.Fatalf("(7, Asura) price = %d, 其他服务器的合并不应改动它", got.Price)
	}
	if got := byKey["7|Bahamut"]; got.Price != 140 {
		t.Fatalf("(7, Bahamut) price = %d", got.Price)
	}
	if got := byKey["8|Asura"]; got.Price != 95 {
		t.Fatalf("(8, Asura) price = %d, 同键新行应覆盖旧行", got.Price)
	}

	// Existing rows keep their original file order.
	if rows[0].Key() != "7|Asura" || rows[1].Key() != "8|Asura" || rows[2].Key() != "7|Bahamut" {
		t.Fatalf("row order = %v %v %v", rows[0].Key(), rows[1].Key(), rows[2].Key())
	}
}

func TestMergeItemsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)

	rows := []ItemRow{{ItemID: 1, Name: "Fire Crystal", Price: 120, SoldPerDay: 8.5, Server: "Asura", Stackable: "12", Category: "Crystals"}}
	for i := 0; i < 2; i++ {
		if err := s.MergeItems(ctx, rows); err != nil {
			t.Fatalf("MergeItems #%d: %v", i+1, err)
		}
	}

	got, err := s.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("rows = %d", len(got))
	}
	if got[0] != rows[0] {
		t.Fatalf("round trip = %+v, want %+v", got[0], rows[0])
	}
}

func TestMergeComparisonsScopedByKey(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)

	unit := ComparisonRow{
		ItemID: 2955, Name: "Alexandrite", Category: "Materials", Scope: ScopeUnit,
		LowestPrice: 100, LowestServer: "Asura", HighestPrice: 150, HighestServer: "Bahamut",
		AveragePrice: 125, PriceDifference: 50, ServerCount: 2,
	}
	stack := unit
	stack.Scope = ScopeStack
	stack.LowestPrice, stack.HighestPrice = 9500, 14000
	stack.AveragePrice, stack.PriceDifference = 11750, 4500

	if err := s.MergeComparisons(ctx, []ComparisonRow{unit, stack}); err != nil {
		t.Fatalf("MergeComparisons: %v", err)
	}

	// Updating the unit scope must leave the stack scope alone.
	unit.PriceDifference = 60
	unit.HighestPrice = 160
	if err := s.MergeComparisons(ctx, []ComparisonRow{unit}); err != nil {
		t.Fatalf("MergeComparisons: %v", err)
	}

	got, err := s.ListComparisons(ctx)
	if err != nil {
		t.Fatalf("ListComparisons: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d", len(got))
	}
	byKey := map[string]ComparisonRow{}
	for _, row := range got {
		byKey[row.Key()] = row
	}
	if byKey["2955|unit"].PriceDifference != 60 {
		t.Fatalf("unit diff = %d", byKey["2955|unit"].PriceDifference)
	}
	if byKey["2955|stack"].PriceDifference != 4500 {
		t.Fatalf("stack diff = %d, unit 范围的更新不应影响 stack 行", byKey["2955|stack"].PriceDifference)
	}
}

func TestListItemsMissingFile(t *testing.T) {
	s := tempStore(t)
	rows, err := s.ListItems(context.Background())
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %v", rows)
	}
}

func TestStoreNotConfigured(t *testing.T) {
	s := NewCSVStore("", "")
	if err := s.MergeItems(context.Background(), nil); err != ErrNotConfigured {
		t.Fatalf("err = %v", err)
	}
	if _, err := s.ListComparisons(context.Background()); err != ErrNotConfigured {
		t.Fatalf("err = %v", err)
	}
}
