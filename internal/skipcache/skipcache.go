// Package skipcache persists terminal exclusion decisions so repeated
// scans never re-fetch items already known to be unsellable.
package skipcache

import (
	"context"
	"strings"

	"market-miner/internal/fetcher"
)

// Entry is one persisted exclusion: an item id, the best name seen for
// it so far, and every distinct reason ever observed, in first-seen
// order.
type Entry struct {
	ItemID  int      `json:"itemid"`
	Name    string   `json:"name"`
	Reasons []string `json:"-"`
}

// Reason renders the reason list the way it is persisted.
func (e Entry) Reason() string {
	return strings.Join(e.Reasons, "; ")
}

// ParseReasons splits a persisted reason string back into the list.
func ParseReasons(v string) []string {
	var reasons []string
	for _, part := range strings.Split(v, ";") {
		if part = strings.TrimSpace(part); part != "" {
			reasons = append(reasons, part)
		}
	}
	return reasons
}

// Cache is the exclusion store. RecordExclusion merges rather than
// overwrites: the name is backfilled only while unknown, and a reason
// is appended only if not already present. Entries are never deleted.
type Cache interface {
	Load(ctx context.Context) (map[int]Entry, error)
	RecordExclusion(ctx context.Context, itemID int, name, reason string) error
	Close() error
}

// merge applies the union semantics shared by every backend.
func merge(entry Entry, itemID int, name, reason string) Entry {
	if entry.ItemID == 0 {
		entry.ItemID = itemID
	}
	if name == "" {
		name = fetcher.UnknownName
	}
	if entry.Name == "" || entry.Name == fetcher.UnknownName {
		entry.Name = name
	}
	for _, existing := range entry.Reasons {
		if existing == reason {
			return entry
		}
	}
	entry.Reasons = append(entry.Reasons, reason)
	return entry
}
