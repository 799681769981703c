package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"token-ingest-engine/internal/errs"
)

// UpsertPool inserts a new Pool row keyed by poolAddr, or is a benign no-op
// on an existing row. A venue mismatch between the pool and its token is a
// hard error (§4.1: "Conflicting venue between pool and its token is a hard
// error").
func (s *Store) UpsertPool(ctx context.Context, poolAddr string, fields PoolFields) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		var tokenVenue Venue
		if err := tx.QueryRowContext(ctx, `SELECT venue FROM tokens WHERE id = ?`, fields.TokenID).Scan(&tokenVenue); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("pool %s: token %d: %w", poolAddr, fields.TokenID, errs.ErrReferentialMiss)
			}
			return err
		}
		if fields.Venue != "" && tokenVenue != "" && fields.Venue != tokenVenue {
			return fmt.Errorf("pool %s: venue %s != token venue %s: %w", poolAddr, fields.Venue, tokenVenue, errs.ErrInvariant)
		}

		quoteMint := fields.QuoteMint
		if quoteMint == "" {
			quoteMint = WSOLMint
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO pools (pool_address, token_id, base_mint, quote_mint, venue, status, updated_at)
			VALUES (?, ?, ?, ?, ?, 'active', ?)
			ON CONFLICT(pool_address) DO NOTHING`,
			poolAddr, fields.TokenID, fields.BaseMint, quoteMint, fields.Venue, time.Now().Unix())
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			id, err = res.LastInsertId()
			return err
		}
		s.incDuplicateKey("pools")
		return tx.QueryRowContext(ctx, `SELECT id FROM pools WHERE pool_address = ?`, poolAddr).Scan(&id)
	})
	return id, err
}

// UpdatePoolReserves partially updates reserve/price/progress fields and
// bumps updatedAt. nil fields in upd are left untouched.
func (s *Store) UpdatePoolReserves(ctx context.Context, poolAddr string, upd ReserveUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().Unix()}

	if upd.VirtualBaseReserves != nil {
		sets = append(sets, "virtual_base_reserves = ?")
		args = append(args, upd.VirtualBaseReserves.String())
	}
	if upd.VirtualQuoteReserves != nil {
		sets = append(sets, "virtual_quote_reserves = ?")
		args = append(args, upd.VirtualQuoteReserves.String())
	}
	if upd.RealBaseReserves != nil {
		sets = append(sets, "real_base_reserves = ?")
		args = append(args, upd.RealBaseReserves.String())
	}
	if upd.RealQuoteReserves != nil {
		sets = append(sets, "real_quote_reserves = ?")
		args = append(args, upd.RealQuoteReserves.String())
	}
	if upd.Price != nil {
		sets = append(sets, "latest_price = ?")
		args = append(args, upd.Price.String())
	}
	if upd.PriceUsd != nil {
		sets = append(sets, "latest_price_usd = ?")
		args = append(args, upd.PriceUsd.String())
	}
	if upd.Progress != nil {
		p := clamp(*upd.Progress, 0, 100)
		sets = append(sets, "bonding_curve_progress = ?")
		args = append(args, p)
	}

	query := "UPDATE pools SET " + strings.Join(sets, ", ") + " WHERE pool_address = ?"
	args = append(args, poolAddr)
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// MarkPoolGraduated transitions a pool to the terminal graduated status
// (§3: "status=graduated is terminal for that pool").
func (s *Store) MarkPoolGraduated(ctx context.Context, poolID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pools SET status = 'graduated', updated_at = ?
		WHERE id = ? AND status != 'graduated'`, time.Now().Unix(), poolID)
	return err
}

// GetPoolByAddress returns a Pool by address, or nil if unknown.
func (s *Store) GetPoolByAddress(ctx context.Context, poolAddr string) (*Pool, error) {
	row := s.db.QueryRowContext(ctx, poolSelect+` WHERE pool_address = ?`, poolAddr)
	return scanPool(row)
}

// GetPool returns a Pool by id, or nil if unknown.
func (s *Store) GetPool(ctx context.Context, id int64) (*Pool, error) {
	row := s.db.QueryRowContext(ctx, poolSelect+` WHERE id = ?`, id)
	return scanPool(row)
}

// GetOldestPoolForToken is the Reconciler's fallback when a trade carries no
// pool address: the oldest (lowest id) pool owned by the token.
func (s *Store) GetOldestPoolForToken(ctx context.Context, tokenID int64) (*Pool, error) {
	row := s.db.QueryRowContext(ctx, poolSelect+` WHERE token_id = ? ORDER BY id ASC LIMIT 1`, tokenID)
	return scanPool(row)
}

// GetGraduatedPoolCandidate finds the earliest-updated pool for tokenID in
// the given venue whose updatedAt is at or after sinceUnix (pools keep no
// creation time), used to link a freshly graduated token to its new AMM
// pool. No upper time bound is applied here.
func (s *Store) GetGraduatedPoolCandidate(ctx context.Context, tokenID int64, venue Venue, sinceUnix int64) (*Pool, error) {
	row := s.db.QueryRowContext(ctx, poolSelect+`
		WHERE token_id = ? AND venue = ? AND updated_at >= ?
		ORDER BY updated_at ASC LIMIT 1`, tokenID, venue, sinceUnix)
	return scanPool(row)
}

const poolSelect = `
	SELECT id, pool_address, token_id, base_mint, quote_mint, venue, status,
	       virtual_base_reserves, virtual_quote_reserves, real_base_reserves, real_quote_reserves,
	       bonding_curve_progress, latest_price, latest_price_usd, updated_at
	FROM pools`

func scanPool(row *sql.Row) (*Pool, error) {
	var p Pool
	var vbr, vqr, rbr, rqr, lp, lpu string
	var progress sql.NullFloat64
	err := row.Scan(&p.ID, &p.PoolAddress, &p.TokenID, &p.BaseMint, &p.QuoteMint, &p.Venue, &p.Status,
		&vbr, &vqr, &rbr, &rqr, &progress, &lp, &lpu, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.VirtualBaseReserves, _ = decimal.NewFromString(vbr)
	p.VirtualQuoteReserves, _ = decimal.NewFromString(vqr)
	p.RealBaseReserves, _ = decimal.NewFromString(rbr)
	p.RealQuoteReserves, _ = decimal.NewFromString(rqr)
	p.LatestPrice, _ = decimal.NewFromString(lp)
	p.LatestPriceUsd, _ = decimal.NewFromString(lpu)
	if progress.Valid {
		p.BondingCurveProgress = &progress.Float64
	}
	return &p, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
