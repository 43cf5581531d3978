// internal/repository/price_repository.go
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"crypto-swap/internal/feed"
)

// PricesSchema is the table the Postgres price source reads from. Rows
// are written by whatever ingests the upstream feed.
const PricesSchema = `
CREATE TABLE IF NOT EXISTS prices (
    currency VARCHAR(32) NOT NULL,
    price NUMERIC(38, 18) NOT NULL,
    date TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (currency, date)
);
`

// PriceRepository serves price records from Postgres. It satisfies
// feed.Source and only ever reads.
type PriceRepository struct {
	db *sql.DB
}

func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// Fetch returns the latest record of every currency.
func (r *PriceRepository) Fetch(ctx context.Context) ([]feed.Record, error) {
	query := `
		SELECT DISTINCT ON (currency) currency, price, date
		FROM prices
		ORDER BY currency, date DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query latest prices: %w", err)
	}
	defer rows.Close()

	var records []feed.Record
	for rows.Next() {
		var rec feed.Record
		if err := rows.Scan(&rec.Currency, &rec.Price, &rec.Date); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// History returns every record of one currency since the given time,
// oldest first.
func (r *PriceRepository) History(ctx context.Context, currency string, since time.Time) ([]feed.Record, error) {
	query := `
		SELECT currency, price, date
		FROM prices
		WHERE UPPER(currency) = UPPER($1) AND date >= $2
		ORDER BY date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, currency, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []feed.Record
	for rows.Next() {
		var rec feed.Record
		if err := rows.Scan(&rec.Currency, &rec.Price, &rec.Date); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
