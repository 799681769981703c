// Package reconciler is the single write path of §4.4: every consumer's
// decoded record passes through Reconciler.Emit, which resolves ids,
// upserts entities, batches trades, debounces pool-state writes, enriches
// with a SOL/USD reference price, and links graduations to their AMM pool.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"token-ingest-engine/internal/decode"
	"token-ingest-engine/internal/errs"
	"token-ingest-engine/internal/metrics"
	"token-ingest-engine/internal/store"
)

const idCacheTTL = 5 * time.Minute

// progressDriftEpsilon is the "small epsilon" the spec leaves unnamed for
// comparing the two progress formulas; 1 percentage point is well above
// normal rounding noise between the SOL-raised and tokens-sold bases.
const progressDriftEpsilon = 1.0

// Config is the tunable §4.4 contract: batch size/timeout, pool-state
// debounce, graduation match window, and the SOL/USD enrichment cache.
type Config struct {
	BatchSize       int
	BatchTimeout    time.Duration
	PoolDebounce    time.Duration
	PoolMatchWindow time.Duration
	SolUsdTTL       time.Duration
	SolUsdFallback  decimal.Decimal
}

// DefaultConfig matches the literal constants §4.4 names (B=50, T=5s,
// FLUSH_INTERVAL=5s, POOL_MATCH_WINDOW=1h, 5s SOL/USD TTL, 165 fallback).
func DefaultConfig() Config {
	return Config{
		BatchSize:       50,
		BatchTimeout:    5 * time.Second,
		PoolDebounce:    5 * time.Second,
		PoolMatchWindow: time.Hour,
		SolUsdTTL:       5 * time.Second,
		SolUsdFallback:  decimal.NewFromInt(165),
	}
}

type idEntry struct {
	tokenID int64
	poolID  int64
}

// Reconciler implements consumers.Sink.
type Reconciler struct {
	store   *store.Store
	cfg     Config
	metrics *metrics.Registry

	idCache *lru.LRU[string, idEntry]

	tradeCh  chan store.Transaction
	flushSem chan struct{}

	poolMu      sync.Mutex
	poolPending map[string]store.ReserveUpdate

	solUsdMu     sync.Mutex
	solUsdAt     time.Time
	solUsdCached decimal.Decimal

	stop chan struct{}
}

// New builds a Reconciler; call Run to start its background batch/debounce
// loops before feeding it Emit calls.
func New(st *store.Store, cfg Config) *Reconciler {
	return &Reconciler{
		store:       st,
		cfg:         cfg,
		idCache:     lru.NewLRU[string, idEntry](4096, nil, idCacheTTL),
		tradeCh:     make(chan store.Transaction, 100),
		flushSem:    make(chan struct{}, 2),
		poolPending: make(map[string]store.ReserveUpdate),
		stop:        make(chan struct{}),
	}
}

// SetMetrics attaches a metrics.Registry for the unresolved-id,
// back-pressure and progress-drift counters. Safe to leave unset.
func (r *Reconciler) SetMetrics(m *metrics.Registry) {
	r.metrics = m
}

// Run starts the trade-batching and pool-state-debounce background loops.
// It returns once ctx is cancelled, after a best-effort final flush.
func (r *Reconciler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); r.tradeBatchLoop(ctx) }()
	go func() { defer wg.Done(); r.poolDebounceLoop(ctx) }()
	wg.Wait()
}

// Emit dispatches a decoded Record to the right write path (§4.4). It never
// blocks on storage latency beyond the trade channel's back-pressure cap of
// 100 pending transactions (§4.4 back-pressure).
func (r *Reconciler) Emit(ctx context.Context, rec decode.Record) error {
	switch rec.Kind {
	case decode.KindTokenCreated:
		if err := r.handleTokenCreated(ctx, rec.TokenCreated); err != nil {
			return err
		}
		if rec.PoolCreated != nil && rec.PoolCreated.PoolAddress != "" {
			return r.handlePoolCreated(ctx, rec.PoolCreated)
		}
		return nil
	case decode.KindPoolCreated:
		return r.handlePoolCreated(ctx, rec.PoolCreated)
	case decode.KindPoolStateUpdate:
		return r.handlePoolStateUpdate(ctx, rec.PoolStateUpdate)
	case decode.KindTradeRecord:
		if err := r.handleTradeRecord(ctx, rec.TradeRecord); err != nil {
			return err
		}
		if rec.PoolStateUpdate != nil {
			return r.handlePoolStateUpdate(ctx, rec.PoolStateUpdate)
		}
		return nil
	case decode.KindBondingCurveComplete:
		return r.handleBondingCurveComplete(ctx, rec.BondingCurveComplete)
	case decode.KindGraduated:
		return r.handleGraduated(ctx, rec.Graduated)
	default:
		return nil
	}
}

func (r *Reconciler) cachePut(mint string, tokenID, poolID int64) {
	r.idCache.Add(mint, idEntry{tokenID: tokenID, poolID: poolID})
}

// resolveIDs implements the §4.4 ID resolution contract: (mintAddress,
// poolAddress?) -> (tokenId, poolId) or NotFound. Unknown token or pool is
// never synthesized; the caller drops the record with a warning.
func (r *Reconciler) resolveIDs(ctx context.Context, mintAddress, poolAddress string) (int64, int64, bool) {
	if e, ok := r.idCache.Get(mintAddress); ok && e.poolID != 0 {
		return e.tokenID, e.poolID, true
	}

	token, err := r.store.GetTokenByMint(ctx, mintAddress)
	if err != nil {
		log.Error().Err(err).Str("mint", mintAddress).Msg("id resolution: token lookup failed")
		return 0, 0, false
	}
	if token == nil {
		log.Warn().Str("mint", mintAddress).Msg("id resolution: unknown token, dropping record")
		r.incUnresolved("token")
		return 0, 0, false
	}

	var pool *store.Pool
	if poolAddress != "" {
		pool, err = r.store.GetPoolByAddress(ctx, poolAddress)
		if err != nil {
			log.Error().Err(err).Str("pool", poolAddress).Msg("id resolution: pool lookup failed")
			return 0, 0, false
		}
	}
	if pool == nil {
		pool, err = r.store.GetOldestPoolForToken(ctx, token.ID)
		if err != nil {
			log.Error().Err(err).Int64("token", token.ID).Msg("id resolution: oldest-pool fallback failed")
			return 0, 0, false
		}
	}
	if pool == nil {
		log.Warn().Str("mint", mintAddress).Msg("id resolution: unknown pool, dropping record")
		r.incUnresolved("pool")
		return 0, 0, false
	}

	r.cachePut(mintAddress, token.ID, pool.ID)
	return token.ID, pool.ID, true
}

func (r *Reconciler) incUnresolved(entity string) {
	if r.metrics != nil {
		r.metrics.UnresolvedIDTotal.WithLabelValues(entity).Inc()
	}
}

// solUsdPrice consults the 5s-TTL SOL/USD cache, refreshing from the Store
// on a cold miss and falling back to 165 when the Store has no price yet
// (§4.4 "falls back to 165 on cold miss and logs").
func (r *Reconciler) solUsdPrice(ctx context.Context) decimal.Decimal {
	r.solUsdMu.Lock()
	defer r.solUsdMu.Unlock()

	if time.Since(r.solUsdAt) < r.cfg.SolUsdTTL {
		return r.solUsdCached
	}

	p, err := r.store.GetSolUsdLatest(ctx)
	if err != nil || p == nil {
		if err != nil {
			log.Warn().Err(err).Msg("sol/usd cache: store read failed, using fallback")
		} else {
			log.Warn().Msg("sol/usd cache: cold miss, using fallback")
		}
		r.solUsdCached = r.cfg.SolUsdFallback
		r.solUsdAt = time.Now()
		return r.solUsdCached
	}

	r.solUsdCached = p.PriceUsd
	r.solUsdAt = time.Now()
	return r.solUsdCached
}

func wrapReferentialMiss(what, id string) error {
	return fmt.Errorf("reconciler: %s %q unresolved: %w", what, id, errs.ErrReferentialMiss)
}
