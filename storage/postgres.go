package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"streeteasy_scraper/identity"
	"streeteasy_scraper/models"
)

// PostgresExporter publishes run results to a shared Postgres database.
type PostgresExporter struct {
	pool *pgxpool.Pool
}

func NewPostgresExporter(ctx context.Context, connString string) (*PostgresExporter, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 5
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	e := &PostgresExporter{pool: pool}
	if err := e.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return e, nil
}

func (e *PostgresExporter) Close() {
	e.pool.Close()
}

func (e *PostgresExporter) migrate(ctx context.Context) error {
	_, err := e.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			fingerprint TEXT PRIMARY KEY,
			url TEXT,
			address TEXT,
			neighborhood TEXT,
			price INTEGER,
			sqft INTEGER,
			taxes INTEGER,
			fees INTEGER,
			listing_date DATE,
			days_on_market INTEGER,
			first_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_run_id BIGINT
		);
		CREATE INDEX IF NOT EXISTS idx_listings_neighborhood ON listings(neighborhood);
		CREATE INDEX IF NOT EXISTS idx_listings_listing_date ON listings(listing_date DESC);
	`)
	return err
}

const upsertListingSQL = `
	INSERT INTO listings (
		fingerprint, url, address, neighborhood, price, sqft, taxes, fees,
		listing_date, days_on_market, last_run_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (fingerprint) DO UPDATE SET
		url = COALESCE(NULLIF(EXCLUDED.url, ''), listings.url),
		address = COALESCE(NULLIF(EXCLUDED.address, ''), listings.address),
		neighborhood = COALESCE(NULLIF(EXCLUDED.neighborhood, ''), listings.neighborhood),
		price = COALESCE(EXCLUDED.price, listings.price),
		sqft = COALESCE(EXCLUDED.sqft, listings.sqft),
		taxes = COALESCE(EXCLUDED.taxes, listings.taxes),
		fees = COALESCE(EXCLUDED.fees, listings.fees),
		listing_date = COALESCE(EXCLUDED.listing_date, listings.listing_date),
		days_on_market = COALESCE(EXCLUDED.days_on_market, listings.days_on_market),
		last_seen = NOW(),
		last_run_id = EXCLUDED.last_run_id`

// ExportListings upserts a run's listings in one batch. Absent fields never
// clear a value stored by an earlier run.
func (e *PostgresExporter) ExportListings(ctx context.Context, runID int64, listings []models.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for i := range listings {
		l := &listings[i]
		batch.Queue(upsertListingSQL,
			identity.Fingerprint(l), l.URL, l.Address, l.Neighborhood,
			l.Price, l.SqFt, l.Taxes, l.Fees, l.ListingDate, l.DaysOnMarket, runID,
		)
	}

	results := e.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range listings {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("upsert listing %d: %w", i, err)
		}
	}
	return len(listings), nil
}

// CountListings returns how many distinct listings have been exported.
func (e *PostgresExporter) CountListings(ctx context.Context) (int, error) {
	var n int
	err := e.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n)
	return n, err
}
