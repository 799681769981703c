package store

import (
	"context"
	"database/sql"
)

// InsertHolderScore appends a holder-analysis snapshot. Snapshots are
// append-only; only the latest per token is normally consumed (§3).
func (s *Store) InsertHolderScore(ctx context.Context, h HolderScore) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holder_snapshots
			(token_id, score_time, distribution_score, quality_score, activity_score, total_score,
			 gini, top1pct_concentration, holder_count, bot_ratio, smart_money_ratio, credits_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token_id, score_time) DO NOTHING`,
		h.TokenID, h.ScoreTime, h.DistributionScore, h.QualityScore, h.ActivityScore, h.TotalScore,
		h.Gini.String(), h.Top1PctConcentration.String(), h.HolderCount,
		h.BotRatio.String(), h.SmartMoneyRatio.String(), h.CreditsUsed)
	return err
}

// GetLatestHolderScore returns the most recent holder snapshot for a token,
// or nil if the token has never been analyzed.
func (s *Store) GetLatestHolderScore(ctx context.Context, tokenID int64) (*HolderScore, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token_id, score_time, distribution_score, quality_score, activity_score, total_score,
		       gini, top1pct_concentration, holder_count, bot_ratio, smart_money_ratio, credits_used
		FROM holder_snapshots WHERE token_id = ? ORDER BY score_time DESC LIMIT 1`, tokenID)

	var h HolderScore
	var gini, top1, botRatio, smartRatio string
	err := row.Scan(&h.TokenID, &h.ScoreTime, &h.DistributionScore, &h.QualityScore, &h.ActivityScore,
		&h.TotalScore, &gini, &top1, &h.HolderCount, &botRatio, &smartRatio, &h.CreditsUsed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h.Gini = mustDecimal(gini)
	h.Top1PctConcentration = mustDecimal(top1)
	h.BotRatio = mustDecimal(botRatio)
	h.SmartMoneyRatio = mustDecimal(smartRatio)
	return &h, nil
}

// UpsertWalletAnalysis inserts or updates a wallet enrichment record.
// lastAnalyzed is expected to be monotonically increasing per wallet; the
// caller is responsible for only calling this with a fresher timestamp.
func (s *Store) UpsertWalletAnalysis(ctx context.Context, w WalletAnalysis) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet_analyses
			(wallet_address, created_at, last_active, tx_count, sol_balance, wallet_age_days,
			 is_bot, is_smart_money, risk_score, last_analyzed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_address) DO UPDATE SET
			last_active = excluded.last_active,
			tx_count = excluded.tx_count,
			sol_balance = excluded.sol_balance,
			wallet_age_days = excluded.wallet_age_days,
			is_bot = excluded.is_bot,
			is_smart_money = excluded.is_smart_money,
			risk_score = excluded.risk_score,
			last_analyzed = excluded.last_analyzed
		WHERE excluded.last_analyzed >= wallet_analyses.last_analyzed`,
		w.WalletAddress, w.CreatedAt, w.LastActive, w.TxCount, w.SolBalance, w.WalletAgeDays,
		boolToInt(w.IsBot), boolToInt(w.IsSmartMoney), w.RiskScore, w.LastAnalyzed)
	return err
}

// GetWalletAnalysis returns a wallet's enrichment record, or nil if unknown.
func (s *Store) GetWalletAnalysis(ctx context.Context, addr string) (*WalletAnalysis, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT wallet_address, created_at, last_active, tx_count, sol_balance, wallet_age_days,
		       is_bot, is_smart_money, risk_score, last_analyzed
		FROM wallet_analyses WHERE wallet_address = ?`, addr)

	var w WalletAnalysis
	var isBot, isSmart int
	err := row.Scan(&w.WalletAddress, &w.CreatedAt, &w.LastActive, &w.TxCount, &w.SolBalance,
		&w.WalletAgeDays, &isBot, &isSmart, &w.RiskScore, &w.LastAnalyzed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.IsBot = isBot != 0
	w.IsSmartMoney = isSmart != 0
	return &w, nil
}
