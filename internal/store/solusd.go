package store

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
)

// InsertSolUsdPrice appends a reference-price row; priceTime must be
// strictly increasing (§3), enforced here by the primary key.
func (s *Store) InsertSolUsdPrice(ctx context.Context, priceTime int64, priceUsd decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sol_usd_prices (price_time, price_usd) VALUES (?, ?)
		ON CONFLICT(price_time) DO NOTHING`, priceTime, priceUsd.String())
	return err
}

// GetSolUsdLatest returns the newest SOL/USD reference price, or nil if
// none has been recorded yet.
func (s *Store) GetSolUsdLatest(ctx context.Context) (*SolUsdPrice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT price_time, price_usd FROM sol_usd_prices ORDER BY price_time DESC LIMIT 1`)

	var p SolUsdPrice
	var priceUsd string
	err := row.Scan(&p.PriceTime, &priceUsd)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.PriceUsd = mustDecimal(priceUsd)
	return &p, nil
}
