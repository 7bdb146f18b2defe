package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"market-miner/internal/config"
)

const (
	upsertItemSQL = `INSERT INTO items (
        itemid, name, price, stack_price, sold_per_day,
        stack_sold_per_day, category, stackable, server
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (itemid, server) DO UPDATE
    SET
        name               = EXCLUDED.name,
        price              = EXCLUDED.price,
        stack_price        = EXCLUDED.stack_price,
        sold_per_day       = EXCLUDED.sold_per_day,
        stack_sold_per_day = EXCLUDED.stack_sold_per_day,
        category           = EXCLUDED.category,
        stackable          = EXCLUDED.stackable;`

	listItemsSQL = `SELECT
        itemid, name, price, stack_price, sold_per_day,
        stack_sold_per_day, category, stackable, server
    FROM items
    ORDER BY itemid, server;`

	upsertComparisonSQL = `INSERT INTO comparisons (
        itemid, name, category, scope, lowest_price, lowest_server,
        highest_price, highest_server, average_price, price_difference,
        server_count
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    ON CONFLICT (itemid, scope) DO UPDATE
    SET
        name             = EXCLUDED.name,
        category         = EXCLUDED.category,
        lowest_price     = EXCLUDED.lowest_price,
        lowest_server    = EXCLUDED.lowest_server,
        highest_price    = EXCLUDED.highest_price,
        highest_server   = EXCLUDED.highest_server,
        average_price    = EXCLUDED.average_price,
        price_difference = EXCLUDED.price_difference,
        server_count     = EXCLUDED.server_count;`

	listComparisonsSQL = `SELECT
        itemid, name, category, scope, lowest_price, lowest_server,
        highest_price, highest_server, average_price, price_difference,
        server_count
    FROM comparisons
    ORDER BY itemid, scope;`
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// PostgresStore persists items and comparisons in PostgreSQL. The
// ON CONFLICT upserts give the same new-overwrites-old, foreign-rows-
// preserved semantics the CSV backend computes in memory.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a pgx pool into a store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// MergeItems upserts every row in one batch.
func (s *PostgresStore) MergeItems(ctx context.Context, rows []ItemRow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(upsertItemSQL,
			row.ItemID,
			row.Name,
			row.Price,
			row.StackPrice,
			row.SoldPerDay,
			row.StackSoldPerDay,
			row.Category,
			row.Stackable,
			row.Server,
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()
	for range rows {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("upsert item row: %w", execErr)
		}
	}
	return nil
}

// ListItems returns every persisted item row.
func (s *PostgresStore) ListItems(ctx context.Context) ([]ItemRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listItemsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list items: %w", queryErr)
	}
	defer rows.Close()

	items := make([]ItemRow, 0)
	for rows.Next() {
		var row ItemRow
		if err := rows.Scan(
			&row.ItemID,
			&row.Name,
			&row.Price,
			&row.StackPrice,
			&row.SoldPerDay,
			&row.StackSoldPerDay,
			&row.Category,
			&row.Stackable,
			&row.Server,
		); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// MergeComparisons upserts every comparison row in one batch.
func (s *PostgresStore) MergeComparisons(ctx context.Context, rows []ComparisonRow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(upsertComparisonSQL,
			row.ItemID,
			row.Name,
			row.Category,
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

	results := pool.SendBatch(ctx, batch)
	defer results.Close()
	for range rows {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("upsert comparison row: %w", execErr)
		}
	}
	return nil
}

// ListComparisons returns every persisted comparison row.
func (s *PostgresStore) ListComparisons(ctx context.Context) ([]ComparisonRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listComparisonsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list comparisons: %w", queryErr)
	}
	defer rows.Close()

	comparisons := make([]ComparisonRow, 0)
	for rows.Next() {
		var row ComparisonRow
		if err := rows.Scan(
			&row.ItemID,
			&row.Name,
			&row.Category,
			&row.Scope,
			&row.LowestPrice,
			&row.LowestServer,
			&row.HighestPrice,
			&row.HighestServer,
			&row.AveragePrice,
			&row.PriceDifference,
			&row.ServerCount,
		); err != nil {
			return nil, err
		}
		comparisons = append(comparisons, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return comparisons, nil
}

var _ Store = (*PostgresStore)(nil)
