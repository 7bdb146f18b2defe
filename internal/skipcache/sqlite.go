package skipcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const (
	createSkipTableSQL = `CREATE TABLE IF NOT EXISTS skipped_items (
        itemid INTEGER PRIMARY KEY,
        name   TEXT NOT NULL,
        reason TEXT NOT NULL
    );`

	selectSkipEntrySQL = `SELECT name, reason FROM skipped_items WHERE itemid = ?;`

	listSkipEntriesSQL = `SELECT itemid, name, reason FROM skipped_items;`

	upsertSkipEntrySQL = `INSERT INTO skipped_items (itemid, name, reason)
    VALUES (?, ?, ?)
    ON CONFLICT (itemid) DO UPDATE
    SET name = excluded.name, reason = excluded.reason;`
)

// SQLite is the embedded-database cache backend. SQLite's journal gives
// the same crash tolerance the JSON backend gets from write-replace.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the cache database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open skip cache db: %w", err)
	}
	if _, err := db.Exec(createSkipTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create skipped_items table: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Load reads every persisted entry.
func (c *SQLite) Load(ctx context.Context) (map[int]Entry, error) {
	rows, err := c.db.QueryContext(ctx, listSkipEntriesSQL)
	if err != nil {
		return nil, fmt.Errorf("list skipped items: %w", err)
	}
	defer rows.Close()

	entries := make(map[int]Entry)
	for rows.Next() {
		var id int
		var name, reason string
		if err := rows.Scan(&id, &name, &reason); err != nil {
			return nil, err
		}
		entries[id] = Entry{ItemID: id, Name: name, Reasons: ParseReasons(reason)}
	}
	return entries, rows.Err()
}

// RecordExclusion merges one exclusion into the table.
func (c *SQLite) RecordExclusion(ctx context.Context, itemID int, name, reason string) error {
	var entry Entry
	var storedName, storedReason string
	err := c.db.QueryRowContext(ctx, selectSkipEntrySQL, itemID).Scan(&storedName, &storedReason)
	switch {
	case err == nil:
		entry = Entry{ItemID: itemID, Name: storedName, Reasons: ParseReasons(storedReason)}
	case errors.Is(err, sql.ErrNoRows):
		// first observation
	default:
		return fmt.Errorf("read skipped item %d: %w", itemID, err)
	}

	entry = merge(entry, itemID, name, reason)
	if _, err := c.db.ExecContext(ctx, upsertSkipEntrySQL, itemID, entry.Name, entry.Reason()); err != nil {
		return fmt.Errorf("upsert skipped item %d: %w", itemID, err)
	}
	return nil
}

// Close releases the database handle.
func (c *SQLite) Close() error {
	return c.db.Close()
}

var _ Cache = (*SQLite)(nil)
