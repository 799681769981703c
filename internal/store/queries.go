package store

import (
	"context"
	"database/sql"
)

// PriceChangeOverWindow returns the percentage price change for tokenID
// between the candle at (now-window) and the candle at now, or nil if
// either endpoint has no candle yet.
func (s *Store) PriceChangeOverWindow(ctx context.Context, tokenID int64, fromMinute, toMinute int64) (*float64, error) {
	from, err := s.GetCandle(ctx, tokenID, fromMinute)
	if err != nil || from == nil {
		return nil, err
	}
	to, err := s.GetCandle(ctx, tokenID, toMinute)
	if err != nil || to == nil {
		return nil, err
	}
	if from.Close.IsZero() {
		return nil, nil
	}
	pct, _ := to.Close.Sub(from.Close).Div(from.Close).Mul(decimalHundred).Float64()
	return &pct, nil
}

// TopVolumeTokens returns up to limit token ids ranked by total SOL volume
// in the candles between fromMinute and toMinute.
func (s *Store) TopVolumeTokens(ctx context.Context, fromMinute, toMinute int64, limit int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_id, SUM(volume_sol) AS vol
		FROM candles WHERE minute >= ? AND minute <= ?
		GROUP BY token_id ORDER BY vol DESC LIMIT ?`, fromMinute, toMinute, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		var vol int64
		if err := rows.Scan(&id, &vol); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// EligibleToken is a candidate surfaced by EligibleForHolderAnalysis,
// carrying the fields the ScoreEngine's priority function needs (§4.5.2).
type EligibleToken struct {
	TokenID              int64
	Progress             float64
	AgeSeconds           int64
	TransactionCount     int
	HasHolderScore       bool
	LastHolderScoreAge   int64
}

// EligibleForHolderAnalysis returns tokens meeting the §4.5.2 eligibility
// bar: 10 ≤ bondingCurveProgress < 100, status active, age ≥ minAgeSeconds,
// transactionCount ≥ minTxCount.
func (s *Store) EligibleForHolderAnalysis(ctx context.Context, nowUnix, minAgeSeconds int64, minTxCount int) ([]EligibleToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			p.token_id,
			p.bonding_curve_progress,
			? - t.creation_time AS age,
			(SELECT COUNT(*) FROM transactions tx WHERE tx.token_id = p.token_id) AS tx_count,
			(SELECT MAX(score_time) FROM holder_snapshots hs WHERE hs.token_id = p.token_id) AS last_score
		FROM pools p
		JOIN tokens t ON t.id = p.token_id
		WHERE p.status = 'active'
		  AND p.bonding_curve_progress >= 10 AND p.bonding_curve_progress < 100
		  AND (? - t.creation_time) >= ?`, nowUnix, nowUnix, minAgeSeconds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EligibleToken
	for rows.Next() {
		var e EligibleToken
		var lastScore sql.NullInt64
		var txCount int
		if err := rows.Scan(&e.TokenID, &e.Progress, &e.AgeSeconds, &txCount, &lastScore); err != nil {
			return nil, err
		}
		if txCount < minTxCount {
			continue
		}
		e.TransactionCount = txCount
		if lastScore.Valid {
			e.HasHolderScore = true
			e.LastHolderScoreAge = nowUnix - lastScore.Int64
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
