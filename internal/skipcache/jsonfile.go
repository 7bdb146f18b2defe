package skipcache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// jsonEntry is the on-disk shape, matching the skipped_items.json layout
// older tooling already reads.
type jsonEntry struct {
	ItemID int    `json:"itemid"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// JSONFile is the single-file cache backend. Writes are write-replace:
// the whole table is rendered to a temp file and renamed over the old
// one, so an interrupted write never corrupts committed entries.
type JSONFile struct {
	path string

	mu      sync.Mutex
	entries map[int]Entry
	loaded  bool
}

// NewJSONFile opens (or will create) the cache at path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Load reads every persisted entry. A missing file is an empty cache.
func (c *JSONFile) Load(ctx context.Context) (map[int]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(); err != nil {
		return nil, err
	}

	out := make(map[int]Entry, len(c.entries))
	for id, entry := range c.entries {
		out[id] = entry
	}
	return out, nil
}

// RecordExclusion merges one exclusion and persists the table.
func (c *JSONFile) RecordExclusion(ctx context.Context, itemID int, name, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(); err != nil {
		return err
	}

	c.entries[itemID] = merge(c.entries[itemID], itemID, name, reason)
	return c.flush()
}

// Close is a no-op for the file backend.
func (c *JSONFile) Close() error { return nil }

func (c *JSONFile) ensureLoaded() error {
	if c.loaded {
		return nil
	}

	c.entries = make(map[int]Entry)
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.loaded = true
			return nil
		}
		return fmt.Errorf("read skip cache: %w", err)
	}

	var data map[string]jsonEntry
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decode skip cache %s: %w", c.path, err)
	}

	for key, je := range data {
		id := je.ItemID
		if id == 0 {
			if parsed, err := strconv.Atoi(key); err == nil {
				id = parsed
			}
		}
		c.entries[id] = Entry{ItemID: id, Name: je.Name, Reasons: ParseReasons(je.Reason)}
	}
	c.loaded = true
	return nil
}

func (c *JSONFile) flush() error {
	data := make(map[string]jsonEntry, len(c.entries))
	for id, entry := range c.entries {
		data[strconv.Itoa(id)] = jsonEntry{ItemID: id, Name: entry.Name, Reason: entry.Reason()}
	}

	// Map keys marshal in sorted order, keeping the file diffable.
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode skip cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create skip cache dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".skipped-*.json")
	if err != nil {
		return fmt.Errorf("create skip cache temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write skip cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close skip cache temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace skip cache: %w", err)
	}
	return nil
}

var _ Cache = (*JSONFile)(nil)
