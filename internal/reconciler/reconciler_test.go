package reconciler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"token-ingest-engine/internal/decode"
	"token-ingest-engine/internal/metrics"
	"token-ingest-engine/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fastConfig() Config {
	return Config{
		BatchSize:       50,
		BatchTimeout:    20 * time.Millisecond,
		PoolDebounce:    20 * time.Millisecond,
		PoolMatchWindow: time.Hour,
		SolUsdTTL:       10 * time.Millisecond,
		SolUsdFallback:  decimal.NewFromInt(165),
	}
}

func newRunningReconciler(t *testing.T) (*Reconciler, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	r := New(st, fastConfig())
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	t.Cleanup(cancel)
	return r, st
}

func TestResolveIDsDropsUnknownToken(t *testing.T) {
	r, _ := newRunningReconciler(t)
	if _, _, ok := r.resolveIDs(context.Background(), "NoSuchMint", ""); ok {
		t.Fatal("expected resolution failure for unknown mint")
	}
}

func TestResolveIDsRecordsUnresolvedMetric(t *testing.T) {
	r, _ := newRunningReconciler(t)
	reg := prometheus.NewRegistry()
	r.SetMetrics(metrics.New(reg))

	if _, _, ok := r.resolveIDs(context.Background(), "NoSuchMint", ""); ok {
		t.Fatal("expected resolution failure for unknown mint")
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found bool
	for _, mf := range mfs {
		if mf.GetName() == "ingest_unresolved_id_total" {
			found = true
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 1 {
				t.Fatalf("expected counter value 1, got %v", got)
			}
		}
	}
	if !found {
		t.Fatal("expected ingest_unresolved_id_total to be registered and incremented")
	}
}

func TestEmitTokenPoolTradeEndToEnd(t *testing.T) {
	r, st := newRunningReconciler(t)
	ctx := context.Background()

	if err := r.Emit(ctx, decode.Record{Kind: decode.KindTokenCreated, TokenCreated: &decode.TokenCreated{
		Mint: "MintA", Venue: store.VenuePumpFun, CreationSig: "CREATESIG", Creator: "CreatorA",
	}}); err != nil {
		t.Fatalf("emit token: %v", err)
	}
	if err := r.Emit(ctx, decode.Record{Kind: decode.KindPoolCreated, PoolCreated: &decode.PoolCreated{
		PoolAddress: "PoolA", BaseMint: "MintA", TokenMint: "MintA", Venue: store.VenuePumpFun,
	}}); err != nil {
		t.Fatalf("emit pool: %v", err)
	}
	if err := r.Emit(ctx, decode.Record{Kind: decode.KindTradeRecord, TradeRecord: &decode.TradeRecord{
		Signature: "TXSIG", BlockTime: time.Now().Unix(), Mint: "MintA", PoolAddress: "PoolA",
		Type: store.TxBuy, SolAmount: 1_000_000_000, TokenAmount: 100_000_000,
		PostBaseReserve: 100_000_000_000_000, PostQuoteReserve: 1_000_000_000, Success: true,
	}}); err != nil {
		t.Fatalf("emit trade: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	token, err := st.GetTokenByMint(ctx, "MintA")
	if err != nil || token == nil {
		t.Fatalf("GetTokenByMint: %v, %v", token, err)
	}

	now := time.Now().Unix()
	if err := st.RefreshCandles(ctx, 0, now+60); err != nil {
		t.Fatalf("RefreshCandles: %v", err)
	}

	var total int
	for c := range st.QueryCandles(ctx, token.ID, 0, now+60) {
		total += c.TradeCount
	}
	if total != 1 {
		t.Fatalf("expected 1 trade landed in a candle, got %d", total)
	}
}

func TestTradeRecordDropsOnUnresolvedToken(t *testing.T) {
	r, _ := newRunningReconciler(t)
	err := r.Emit(context.Background(), decode.Record{Kind: decode.KindTradeRecord, TradeRecord: &decode.TradeRecord{
		Signature: "ORPHANSIG", Mint: "NoSuchMint", PoolAddress: "NoSuchPool", Type: store.TxBuy,
	}})
	if err == nil {
		t.Fatal("expected referential-miss error for an unresolvable trade")
	}
}

func TestTradeRecordAppliesAttachedPoolStateUpdate(t *testing.T) {
	r, st := newRunningReconciler(t)
	ctx := context.Background()

	if err := r.Emit(ctx, decode.Record{Kind: decode.KindTokenCreated, TokenCreated: &decode.TokenCreated{
		Mint: "MintC", Venue: store.VenuePumpFun, CreationSig: "CREATESIG", Creator: "CreatorC",
	}}); err != nil {
		t.Fatalf("emit token: %v", err)
	}
	if err := r.Emit(ctx, decode.Record{Kind: decode.KindPoolCreated, PoolCreated: &decode.PoolCreated{
		PoolAddress: "PoolC", BaseMint: "MintC", TokenMint: "MintC", Venue: store.VenuePumpFun,
	}}); err != nil {
		t.Fatalf("emit pool: %v", err)
	}

	progress := 37.5
	if err := r.Emit(ctx, decode.Record{
		Kind: decode.KindTradeRecord,
		TradeRecord: &decode.TradeRecord{
			Signature: "TRADEWITHSTATE", BlockTime: time.Now().Unix(), Mint: "MintC", PoolAddress: "PoolC",
			Type: store.TxBuy, SolAmount: 1_000_000_000, TokenAmount: 100_000_000, Success: true,
		},
		PoolStateUpdate: &decode.PoolStateUpdate{
			PoolAddress: "PoolC", Status: store.PoolStatusActive, Progress: &progress,
		},
	}); err != nil {
		t.Fatalf("emit trade with attached pool state: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	pool, err := st.GetPoolByAddress(ctx, "PoolC")
	if err != nil || pool == nil {
		t.Fatalf("GetPoolByAddress: %v, %v", pool, err)
	}
	if pool.BondingCurveProgress == nil || *pool.BondingCurveProgress != progress {
		t.Fatalf("expected trade-attached progress %v applied, got %v", progress, pool.BondingCurveProgress)
	}
}

func TestPoolStateUpdateDebouncesToLatestWins(t *testing.T) {
	r, st := newRunningReconciler(t)
	ctx := context.Background()

	tokenID, err := st.UpsertToken(ctx, "MintB", store.TokenFields{Venue: store.VenueRaydiumLaunchpad, Decimals: 6})
	if err != nil {
		t.Fatalf("UpsertToken: %v", err)
	}
	if _, err := st.UpsertPool(ctx, "PoolB", store.PoolFields{TokenID: tokenID, Venue: store.VenueRaydiumLaunchpad}); err != nil {
		t.Fatalf("UpsertPool: %v", err)
	}

	first, second := 10.0, 42.0
	if err := r.Emit(ctx, decode.Record{Kind: decode.KindPoolStateUpdate, PoolStateUpdate: &decode.PoolStateUpdate{
		PoolAddress: "PoolB", Status: store.PoolStatusActive, Progress: &first,
	}}); err != nil {
		t.Fatalf("emit first pool state: %v", err)
	}
	if err := r.Emit(ctx, decode.Record{Kind: decode.KindPoolStateUpdate, PoolStateUpdate: &decode.PoolStateUpdate{
		PoolAddress: "PoolB", Status: store.PoolStatusActive, Progress: &second,
	}}); err != nil {
		t.Fatalf("emit second pool state: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	pool, err := st.GetPoolByAddress(ctx, "PoolB")
	if err != nil || pool == nil {
		t.Fatalf("GetPoolByAddress: %v, %v", pool, err)
	}
	if pool.BondingCurveProgress == nil || *pool.BondingCurveProgress != second {
		t.Fatalf("expected latest-wins progress %v, got %v", second, pool.BondingCurveProgress)
	}
}

func TestGraduationLinksPoolCreatedAfterGraduation(t *testing.T) {
	r, st := newRunningReconciler(t)
	ctx := context.Background()

	if err := r.Emit(ctx, decode.Record{Kind: decode.KindTokenCreated, TokenCreated: &decode.TokenCreated{
		Mint: "MintC", Venue: store.VenuePumpFun,
	}}); err != nil {
		t.Fatalf("emit token: %v", err)
	}
	if err := r.Emit(ctx, decode.Record{Kind: decode.KindGraduated, Graduated: &decode.Graduated{
		Mint: "MintC", GraduationSig: "GRADSIG", GraduationTime: time.Now().Unix(), TargetAmm: store.VenuePumpSwap,
	}}); err != nil {
		t.Fatalf("emit graduated: %v", err)
	}
	if err := r.Emit(ctx, decode.Record{Kind: decode.KindPoolCreated, PoolCreated: &decode.PoolCreated{
		PoolAddress: "PoolC", BaseMint: "MintC", TokenMint: "MintC", Venue: store.VenuePumpSwap,
	}}); err != nil {
		t.Fatalf("emit pool: %v", err)
	}

	pool, err := st.GetPoolByAddress(ctx, "PoolC")
	if err != nil || pool == nil {
		t.Fatalf("GetPoolByAddress: %v, %v", pool, err)
	}
	if pool.Status != store.PoolStatusGraduated {
		t.Fatalf("expected pool created after graduation to be linked, got status %v", pool.Status)
	}
}

func TestGraduationLinksPoolCreatedBeforeGraduation(t *testing.T) {
	r, st := newRunningReconciler(t)
	ctx := context.Background()

	if err := r.Emit(ctx, decode.Record{Kind: decode.KindTokenCreated, TokenCreated: &decode.TokenCreated{
		Mint: "MintD", Venue: store.VenuePumpFun,
	}}); err != nil {
		t.Fatalf("emit token: %v", err)
	}
	if err := r.Emit(ctx, decode.Record{Kind: decode.KindPoolCreated, PoolCreated: &decode.PoolCreated{
		PoolAddress: "PoolD", BaseMint: "MintD", TokenMint: "MintD", Venue: store.VenuePumpSwap,
	}}); err != nil {
		t.Fatalf("emit pool: %v", err)
	}
	if err := r.Emit(ctx, decode.Record{Kind: decode.KindGraduated, Graduated: &decode.Graduated{
		Mint: "MintD", GraduationSig: "GRADSIG2", GraduationTime: 0, TargetAmm: store.VenuePumpSwap,
	}}); err != nil {
		t.Fatalf("emit graduated: %v", err)
	}

	pool, err := st.GetPoolByAddress(ctx, "PoolD")
	if err != nil || pool == nil {
		t.Fatalf("GetPoolByAddress: %v, %v", pool, err)
	}
	if pool.Status != store.PoolStatusGraduated {
		t.Fatalf("expected pool pre-dating graduation to be linked, got status %v", pool.Status)
	}
}

func TestBondingCurveCompleteWritesImmediately(t *testing.T) {
	r, st := newRunningReconciler(t)
	ctx := context.Background()

	tokenID, err := st.UpsertToken(ctx, "MintE", store.TokenFields{Venue: store.VenuePumpFun, Decimals: 6})
	if err != nil {
		t.Fatalf("UpsertToken: %v", err)
	}
	if _, err := st.UpsertPool(ctx, "CurveE", store.PoolFields{TokenID: tokenID, Venue: store.VenuePumpFun}); err != nil {
		t.Fatalf("UpsertPool: %v", err)
	}

	if err := r.Emit(ctx, decode.Record{Kind: decode.KindBondingCurveComplete, BondingCurveComplete: &decode.BondingCurveComplete{
		BondingCurveAddr: "CurveE", FinalBaseReserve: 1, FinalQuoteReserve: 2,
	}}); err != nil {
		t.Fatalf("emit bonding curve complete: %v", err)
	}

	pool, err := st.GetPoolByAddress(ctx, "CurveE")
	if err != nil || pool == nil {
		t.Fatalf("GetPoolByAddress: %v, %v", pool, err)
	}
	if pool.BondingCurveProgress == nil || *pool.BondingCurveProgress != 100 {
		t.Fatalf("expected immediate 100%% progress, got %v", pool.BondingCurveProgress)
	}
}

func TestSolUsdFallsBackWhenStoreHasNoPrice(t *testing.T) {
	r, _ := newRunningReconciler(t)
	got := r.solUsdPrice(context.Background())
	if !got.Equal(decimal.NewFromInt(165)) {
		t.Fatalf("expected fallback 165, got %v", got)
	}
}
