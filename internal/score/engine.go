// Package score is the ScoreEngine (§4.5): a cheap synchronous technical
// score recomputed on demand, and an expensive budgeted holder-score
// analyzer driven by a priority queue under a monthly credit cap.
package score

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"token-ingest-engine/internal/enrich"
	"token-ingest-engine/internal/metrics"
	"token-ingest-engine/internal/store"
)

// defaultTotalSupply is pump.fun's fixed total-supply convention used to
// derive a USD market cap from the pool's latest USD price; the Store
// carries no per-token supply column since every venue in scope issues a
// fixed 1B-unit supply at mint.
const defaultTotalSupply = 1_000_000_000.0

// Config bundles the tunables §4.5.2 exposes via HOLDER_BUDGET /
// HOLDER_TARGET_PCT / HOLDER_HARD_STOP_PCT and the rate-limit/scan knobs.
type Config struct {
	Budget        BudgetConfig
	RateLimit     RateLimitConfig
	ScanInterval  time.Duration
	MinAgeSeconds int64
	MinTxCount    int
	SampleHigh    int
	SampleMid     int
	SampleLow     int
}

func DefaultConfig() Config {
	return Config{
		Budget:        DefaultBudgetConfig(),
		RateLimit:     DefaultRateLimitConfig(),
		ScanInterval:  time.Minute,
		MinAgeSeconds: 30 * 60,
		MinTxCount:    3,
		SampleHigh:    500,
		SampleMid:     250,
		SampleLow:     100,
	}
}

// Engine composes the Store with the enrichment client, credit tracker,
// rate limiter, and tiered wallet cache into the two independent scoring
// tracks described in §4.5.
type Engine struct {
	store   *store.Store
	enrich  *enrich.Client
	cfg     Config
	budget  *CreditTracker
	limiter *EnrichLimiter
	cache   *WalletCache
	queue   *AnalysisQueue
	rng     *rand.Rand
	metrics *metrics.Registry

	mu           sync.Mutex
	lastProgress map[int64]float64
}

// SetMetrics attaches a metrics.Registry for the budget-exhaustion and
// credit-usage gauges. Safe to leave unset.
func (e *Engine) SetMetrics(m *metrics.Registry) {
	e.metrics = m
}

func New(st *store.Store, ec *enrich.Client, cfg Config, seed int64) *Engine {
	return &Engine{
		store:        st,
		enrich:       ec,
		cfg:          cfg,
		budget:       NewCreditTracker(cfg.Budget),
		limiter:      NewEnrichLimiter(cfg.RateLimit),
		cache:        NewWalletCache(8192),
		queue:        NewAnalysisQueue(),
		rng:          rand.New(rand.NewSource(seed)),
		lastProgress: make(map[int64]float64),
	}
}

// TechnicalScore recomputes the §4.5.1 score for tokenID at query time; it
// never writes to the Store.
func (e *Engine) TechnicalScore(ctx context.Context, tokenID int64) (Technical, error) {
	pool, err := e.store.GetOldestPoolForToken(ctx, tokenID)
	if err != nil {
		return Technical{}, err
	}
	if pool == nil {
		return Technical{}, nil
	}

	now := time.Now().Unix()
	in := TechnicalInputs{
		MarketCapUsd: mcapUsd(pool.LatestPriceUsd),
	}
	if pool.BondingCurveProgress != nil {
		in.BondingCurveProgress = *pool.BondingCurveProgress
	}

	var openPrice, lastPrice decimal.Decimal
	first := true
	for c := range e.store.QueryCandles(ctx, tokenID, now-3600, now) {
		in.TradeCountLastHour += c.TradeCount
		in.DistinctBuyersLastHour += c.BuyerCount
		in.BuyCountLastHour += c.BuyerCount
		in.SellCountLastHour += c.SellerCount
		if first {
			openPrice = c.Open
			first = false
		}
		lastPrice = c.Close
		if drop := dropFraction(c.Open, c.Low); drop > 0.15 {
			in.LargeSellSolLastHour += float64(c.VolumeSol) / 1e9
		}
	}
	if !first && lastPrice.GreaterThanOrEqual(openPrice) {
		in.RecoveredAfterSelloff = true
	}

	return ComputeTechnical(in), nil
}

func mcapUsd(priceUsd decimal.Decimal) float64 {
	v, _ := priceUsd.Mul(decimal.NewFromFloat(defaultTotalSupply)).Float64()
	return v
}

func dropFraction(open, low decimal.Decimal) float64 {
	if open.IsZero() {
		return 0
	}
	f, _ := open.Sub(low).Div(open).Float64()
	return f
}

// RunHolderAnalysis is the §4.5.2 background loop: scan eligible tokens,
// prioritize, and drain the queue under the credit budget until it is
// empty or the budget is exhausted, once per ScanInterval.
func (e *Engine) RunHolderAnalysis(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.scanAndDrain(ctx)
		}
	}
}

func (e *Engine) scanAndDrain(ctx context.Context) {
	now := time.Now().Unix()
	eligible, err := e.store.EligibleForHolderAnalysis(ctx, now, e.cfg.MinAgeSeconds, e.cfg.MinTxCount)
	if err != nil {
		log.Error().Err(err).Msg("holder analysis eligibility scan failed")
		return
	}

	e.mu.Lock()
	for _, cand := range eligible {
		prev := e.lastProgress[cand.TokenID]
		e.lastProgress[cand.TokenID] = cand.Progress
		milestone := MilestoneCrossed(prev, cand.Progress)

		instant := false
		if !cand.HasHolderScore {
			if tech, err := e.TechnicalScore(ctx, cand.TokenID); err == nil {
				instant = tech.Total() >= 180
			} else {
				log.Warn().Err(err).Int64("token", cand.TokenID).Msg("technical score lookup failed")
			}
		}

		priority, reason := PriorityFor(cand, milestone, instant)
		e.queue.Push(cand.TokenID, priority, reason, cand.Progress)
	}
	e.mu.Unlock()

	for {
		if ReleaseOnCancel(ctx) {
			return
		}
		if err := e.budget.CheckBudget(time.Now()); err != nil {
			log.Warn().Msg("holder analyzer paused: credit budget exhausted")
			if e.metrics != nil {
				e.metrics.BudgetExhaustionTotal.Inc()
			}
			return
		}
		tokenID, reason, ok := e.queue.Pop()
		if !ok {
			return
		}
		if err := e.analyzeToken(ctx, tokenID, reason); err != nil {
			log.Warn().Err(err).Int64("token", tokenID).Msg("holder analysis failed")
		}
		if e.metrics != nil {
			e.metrics.CreditUsagePct.Set(e.budget.UsagePct(time.Now()))
		}
		if pct, crossed := e.budget.CrossedWarningThreshold(time.Now()); crossed {
			alert := CreditWarningAlert(pct)
			log.Warn().Int("pct", pct).Str("severity", string(alert.Severity)).Msg(alert.Reason)
		}
	}
}

func (e *Engine) analyzeToken(ctx context.Context, tokenID int64, reason priorityReason) error {
	token, err := e.store.GetToken(ctx, tokenID)
	if err != nil || token == nil {
		return err
	}

	threshold := e.cfg.SampleLow
	page, err := e.enrich.GetHolders(ctx, token.MintAddress, "", e.cfg.SampleHigh)
	if err != nil {
		return err
	}
	if page.TotalCount > e.cfg.SampleHigh {
		threshold = e.cfg.SampleHigh
	} else if page.TotalCount > e.cfg.SampleMid {
		threshold = e.cfg.SampleMid
	}
	sampled := SampleHolders(page.Holders, threshold, e.rng)

	cacheHits := 0
	bots := make(map[string]bool)
	smart := make(map[string]bool)
	ages := make(map[string]int)
	active24h := 0
	now := time.Now().Unix()

	for _, h := range sampled {
		if w, ok := e.cache.Get(h.Owner); ok {
			cacheHits++
			bots[h.Owner] = w.IsBot
			smart[h.Owner] = w.IsSmartMoney
			ages[h.Owner] = w.WalletAgeDays
			if now-w.LastActive < 24*3600 {
				active24h++
			}
			continue
		}

		w, err := e.store.GetWalletAnalysis(ctx, h.Owner)
		if err != nil {
			return err
		}
		if w == nil {
			hist, err := e.fetchWalletHistory(ctx, h.Owner)
			if err != nil {
				continue
			}
			fresh := classifyWallet(hist, now)
			if err := e.store.UpsertWalletAnalysis(ctx, fresh); err != nil {
				log.Warn().Err(err).Msg("failed to persist wallet analysis")
			}
			w = &fresh
		}
		e.cache.Put(*w)
		bots[h.Owner] = w.IsBot
		smart[h.Owner] = w.IsSmartMoney
		ages[h.Owner] = w.WalletAgeDays
		if now-w.LastActive < 24*3600 {
			active24h++
		}
	}

	cacheHitRate := 0.0
	if len(sampled) > 0 {
		cacheHitRate = float64(cacheHits) / float64(len(sampled))
	}
	cost := EstimateCost(page.TotalCount, cacheHitRate)
	e.budget.Record(cost+int64(page.CreditsUsed), time.Now())

	result := ComputeHolderScore(HolderScoreInputs{
		Holders:          sampled,
		BotOwners:        bots,
		SmartMoneyOwners: smart,
		WalletAgeDays:    ages,
		ActiveHolders24h: active24h,
		Velocity:         velocityFromTxCount(len(sampled), page.TotalCount),
	})

	snapshot := store.HolderScore{
		TokenID: tokenID, ScoreTime: now,
		DistributionScore: result.DistributionScore, QualityScore: result.QualityScore,
		ActivityScore: result.ActivityScore, TotalScore: result.Total(),
		Gini: result.Gini, Top1PctConcentration: result.Top1PctConcentration,
		HolderCount: result.HolderCount, BotRatio: result.BotRatio, SmartMoneyRatio: result.SmartMoneyRatio,
		CreditsUsed: cost,
	}
	if err := e.store.InsertHolderScore(ctx, snapshot); err != nil {
		return err
	}

	for _, alert := range GenerateAlerts(tokenID, result) {
		log.Info().Int64("token", tokenID).Str("severity", string(alert.Severity)).Str("reason", reasonString(reason)).Msg(alert.Reason)
	}
	return nil
}

func (e *Engine) fetchWalletHistory(ctx context.Context, wallet string) (*enrich.WalletHistory, error) {
	var hist *enrich.WalletHistory
	err := e.limiter.Do(ctx, func() error {
		var callErr error
		hist, callErr = e.enrich.GetWalletHistory(ctx, wallet)
		return callErr
	})
	return hist, err
}

func classifyWallet(h *enrich.WalletHistory, now int64) store.WalletAnalysis {
	ageDays := 0
	if h.FirstSeen > 0 {
		ageDays = int((now - h.FirstSeen) / 86400)
	}
	isBot := h.TxCount > 500 && ageDays < 7
	isSmart := ageDays > 180 && h.TxCount > 50 && h.TxCount < 500
	return store.WalletAnalysis{
		WalletAddress: h.Address,
		CreatedAt:     h.FirstSeen,
		LastActive:    now,
		TxCount:       int64(h.TxCount),
		WalletAgeDays: ageDays,
		IsBot:         isBot,
		IsSmartMoney:  isSmart,
		LastAnalyzed:  now,
	}
}

func velocityFromTxCount(sampled, total int) float64 {
	if sampled == 0 {
		return 0
	}
	return float64(total) / float64(sampled)
}

func reasonString(r priorityReason) string { return string(r) }
