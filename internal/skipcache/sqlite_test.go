package skipcache

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteMergeAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "skip.db")

	c, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	if err := c.RecordExclusion(ctx, 9, "", "failed to fetch or parse"); err != nil {
		t.Fatalf("RecordExclusion: %v", err)
	}
	if err := c.RecordExclusion(ctx, 9, "Distilled Water", "no price found"); err != nil {
		t.Fatalf("RecordExclusion: %v", err)
	}
	if err := c.RecordExclusion(ctx, 9, "Distilled Water", "no price found"); err != nil {
		t.Fatalf("RecordExclusion: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	entries, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	entry, ok := entries[9]
	if !ok {
		t.Fatal("entry 9 missing after reopen")
	}
	if entry.Name != "Distilled Water" {
		t.Fatalf("name = %q", entry.Name)
	}
	if got := entry.Reason(); got != "failed to fetch or parse; no price found" {
		t.Fatalf("reason = %q, 重复原因不应追加", got)
	}
}
