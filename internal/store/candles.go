package store

import (
	"context"
	"database/sql"
)

// RefreshCandles materializes the 1-minute candle view for the window
// [fromUnix, toUnix) from Transactions with pricePerToken > 0, matching the
// aggregation contract of §4.1 exactly: open/close are first/last by
// blockTime, high/low are extrema, volumes and counts are sums/distincts.
// This stands in for the "continuous-aggregate policy external to the
// core" the spec describes — here it is a cooperative background worker
// (see internal/solusd and cmd/ingestd for the analogous ticker loops)
// rather than a database extension, since no such extension is available
// to the pure-Go sqlite driver this Store is built on.
func (s *Store) RefreshCandles(ctx context.Context, fromUnix, toUnix int64) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_id, block_time / 60 AS minute, price_per_token, sol_amount, token_amount, type, user
		FROM transactions
		WHERE block_time >= ? AND block_time < ? AND CAST(price_per_token AS REAL) > 0
		ORDER BY token_id, minute, block_time ASC`, fromUnix, toUnix)
	if err != nil {
		return err
	}

	type acc struct {
		tokenID, minute         int64
		open, high, low, close  string
		volSol, volTok          uint64
		tradeCount              int
		buyers, sellers         map[string]struct{}
	}

	var order [][2]int64
	accs := map[[2]int64]*acc{}
	for rows.Next() {
		var tokenID, minute int64
		var price string
		var solAmt, tokAmt uint64
		var txType, user string
		if err := rows.Scan(&tokenID, &minute, &price, &solAmt, &tokAmt, &txType, &user); err != nil {
			rows.Close()
			return err
		}

		key := [2]int64{tokenID, minute}
		a, ok := accs[key]
		if !ok {
			a = &acc{tokenID: tokenID, minute: minute, open: price, high: price, low: price, close: price,
				buyers: map[string]struct{}{}, sellers: map[string]struct{}{}}
			accs[key] = a
			order = append(order, key)
		}
		a.close = price
		if decLess(price, a.low) {
			a.low = price
		}
		if decGreater(price, a.high) {
			a.high = price
		}
		a.volSol += solAmt
		a.volTok += tokAmt
		a.tradeCount++
		if txType == string(TxBuy) {
			a.buyers[user] = struct{}{}
		} else {
			a.sellers[user] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, key := range order {
			a := accs[key]
			_, err := tx.ExecContext(ctx, `
				INSERT INTO candles
					(token_id, minute, open, high, low, close, volume_sol, volume_token, trade_count, buyer_count, seller_count)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(token_id, minute) DO UPDATE SET
					open=excluded.open, high=excluded.high, low=excluded.low, close=excluded.close,
					volume_sol=excluded.volume_sol, volume_token=excluded.volume_token,
					trade_count=excluded.trade_count, buyer_count=excluded.buyer_count, seller_count=excluded.seller_count`,
				a.tokenID, a.minute, a.open, a.high, a.low, a.close, a.volSol, a.volTok,
				a.tradeCount, len(a.buyers), len(a.sellers))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func decLess(a, b string) bool    { return mustDecimal(a).LessThan(mustDecimal(b)) }
func decGreater(a, b string) bool { return mustDecimal(a).GreaterThan(mustDecimal(b)) }
