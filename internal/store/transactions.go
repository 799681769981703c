package store

import (
	"context"
	"database/sql"
)

const maxBatchParams = 1000

// AppendTransaction inserts tx if (signature, blockTime) is new; a
// duplicate is a silent no-op (§3: "Append-only; duplicate (signature,
// blockTime) is a no-op").
func (s *Store) AppendTransaction(ctx context.Context, tx Transaction) error {
	_, err := s.db.ExecContext(ctx, insertTxSQL(),
		tx.Signature, tx.BlockTime, tx.PoolID, tx.TokenID, tx.Slot, tx.Type, tx.User,
		tx.SolAmount, tx.TokenAmount, tx.PricePerToken.String(),
		tx.PreBaseReserve.String(), tx.PreQuoteReserve.String(),
		tx.PostBaseReserve.String(), tx.PostQuoteReserve.String(),
		tx.FeeLamports, boolToInt(tx.Success), tx.RawMetadata)
	return err
}

// AppendTransactionBatch appends a batch of transactions in parameter-
// limited chunks (max ≈1000 params per statement, §4.1). Each chunk is one
// statement with ON CONFLICT DO NOTHING and is atomic per-chunk, not across
// chunks, so one malformed chunk never blocks the rest. Returns the number
// of rows actually inserted (duplicates don't count) and the first chunk
// error, if any.
func (s *Store) AppendTransactionBatch(ctx context.Context, txs []Transaction) (int, error) {
	const cols = 17
	chunkSize := maxBatchParams / cols
	if chunkSize < 1 {
		chunkSize = 1
	}

	inserted := 0
	var firstErr error
	for start := 0; start < len(txs); start += chunkSize {
		end := start + chunkSize
		if end > len(txs) {
			end = len(txs)
		}
		n, err := s.appendChunk(ctx, txs[start:end])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		inserted += n
	}
	return inserted, firstErr
}

func (s *Store) appendChunk(ctx context.Context, chunk []Transaction) (int, error) {
	if len(chunk) == 0 {
		return 0, nil
	}

	placeholders := ""
	args := make([]any, 0, len(chunk)*17)
	for i, tx := range chunk {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)"
		args = append(args,
			tx.Signature, tx.BlockTime, tx.PoolID, tx.TokenID, tx.Slot, tx.Type, tx.User,
			tx.SolAmount, tx.TokenAmount, tx.PricePerToken.String(),
			tx.PreBaseReserve.String(), tx.PreQuoteReserve.String(),
			tx.PostBaseReserve.String(), tx.PostQuoteReserve.String(),
			tx.FeeLamports, boolToInt(tx.Success), tx.RawMetadata)
	}

	query := `INSERT INTO transactions
		(signature, block_time, pool_id, token_id, slot, type, user, sol_amount, token_amount,
		 price_per_token, pre_base_reserve, pre_quote_reserve, post_base_reserve, post_quote_reserve,
		 fee_lamports, success, raw_metadata)
		VALUES ` + placeholders + ` ON CONFLICT(signature, block_time) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func insertTxSQL() string {
	return `INSERT INTO transactions
		(signature, block_time, pool_id, token_id, slot, type, user, sol_amount, token_amount,
		 price_per_token, pre_base_reserve, pre_quote_reserve, post_base_reserve, post_quote_reserve,
		 fee_lamports, success, raw_metadata)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(signature, block_time) DO NOTHING`
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// QueryCandles returns a restartable, lazy sequence of 1-minute candles for
// tokenID between from and to (inclusive), read from the materialized
// candles table. Each call re-issues the query; the returned iterator holds
// no cursor state beyond the open *sql.Rows.
func (s *Store) QueryCandles(ctx context.Context, tokenID int64, from, to int64) func(func(Candle) bool) {
	return func(yield func(Candle) bool) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT token_id, minute, open, high, low, close, volume_sol, volume_token,
			       trade_count, buyer_count, seller_count
			FROM candles WHERE token_id = ? AND minute >= ? AND minute <= ?
			ORDER BY minute ASC`, tokenID, from, to)
		if err != nil {
			return
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanCandle(rows)
			if err != nil {
				return
			}
			if !yield(c) {
				return
			}
		}
	}
}

// GetCandle returns the single candle for tokenID at minute, or nil.
func (s *Store) GetCandle(ctx context.Context, tokenID, minute int64) (*Candle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token_id, minute, open, high, low, close, volume_sol, volume_token,
		       trade_count, buyer_count, seller_count
		FROM candles WHERE token_id = ? AND minute = ?`, tokenID, minute)

	var c Candle
	var open, high, low, close string
	err := row.Scan(&c.TokenID, &c.Minute, &open, &high, &low, &close,
		&c.VolumeSol, &c.VolumeToken, &c.TradeCount, &c.BuyerCount, &c.SellerCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Open = mustDecimal(open)
	c.High = mustDecimal(high)
	c.Low = mustDecimal(low)
	c.Close = mustDecimal(close)
	return &c, nil
}

type rowsScanner interface {
	Scan(dest ...any) error
}

func scanCandle(rows rowsScanner) (Candle, error) {
	var c Candle
	var open, high, low, close string
	err := rows.Scan(&c.TokenID, &c.Minute, &open, &high, &low, &close,
		&c.VolumeSol, &c.VolumeToken, &c.TradeCount, &c.BuyerCount, &c.SellerCount)
	if err != nil {
		return Candle{}, err
	}
	c.Open = mustDecimal(open)
	c.High = mustDecimal(high)
	c.Low = mustDecimal(low)
	c.Close = mustDecimal(close)
	return c, nil
}
