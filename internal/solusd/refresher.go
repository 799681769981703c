// Package solusd is the background SOL/USD reference-price refresher
// (§5 "5s SOL/USD TTL"). It reads a Pyth price-oracle account over chain
// RPC and writes each new reading into the Store, so internal/reconciler's
// cold-miss path reads a live value instead of going straight to the 165
// fallback.
package solusd

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"token-ingest-engine/internal/rpc"
	"token-ingest-engine/internal/store"
)

// Pyth V2 price accounts are laid out far more richly than this; these
// are the only fields the refresher needs, at a simplified fixed-offset
// subset of the real layout (magic, price exponent, aggregate price).
const (
	pythMagic       uint32 = 0xa1b2c3d4
	offsetMagic            = 0
	offsetExpo             = 4
	offsetAggPrice         = 208
	minAccountBytes        = offsetAggPrice + 8
)

// Config configures a Refresher.
type Config struct {
	PriceAccount     string
	RefreshInterval  time.Duration
	FallbackPriceUsd decimal.Decimal
}

// DefaultConfig returns the §5 defaults (5s refresh, 165 fallback) for
// the given Pyth SOL/USD price account pubkey.
func DefaultConfig(priceAccount string) Config {
	return Config{
		PriceAccount:     priceAccount,
		RefreshInterval:  5 * time.Second,
		FallbackPriceUsd: decimal.NewFromInt(165),
	}
}

// Refresher polls a Pyth price account on a fixed interval and persists
// each successful reading.
type Refresher struct {
	rpc   *rpc.Client
	store *store.Store
	cfg   Config

	mu   sync.RWMutex
	last decimal.Decimal
}

// New wires a Refresher from an RPC client and Store.
func New(client *rpc.Client, st *store.Store, cfg Config) *Refresher {
	return &Refresher{rpc: client, store: st, cfg: cfg, last: cfg.FallbackPriceUsd}
}

// Run blocks, refreshing on cfg.RefreshInterval until ctx is cancelled.
// Grounded on the same ticker-loop shape as internal/health.Checker.Start.
func (r *Refresher) Run(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// Latest returns the most recently observed price, or the configured
// fallback if no reading has ever succeeded.
func (r *Refresher) Latest() decimal.Decimal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

func (r *Refresher) refresh(ctx context.Context) {
	info, err := r.rpc.GetAccountInfo(ctx, r.cfg.PriceAccount, "base64")
	if err != nil {
		log.Warn().Err(err).Msg("sol/usd refresh: rpc call failed, keeping last price")
		return
	}
	if info == nil {
		log.Warn().Msg("sol/usd refresh: price account not found, keeping last price")
		return
	}

	price, err := decodeAccountPrice(info.Data)
	if err != nil {
		log.Warn().Err(err).Msg("sol/usd refresh: decode failed, keeping last price")
		return
	}

	r.mu.Lock()
	r.last = price
	r.mu.Unlock()

	if err := r.store.InsertSolUsdPrice(ctx, time.Now().Unix(), price); err != nil {
		log.Error().Err(err).Msg("sol/usd refresh: store write failed")
	}
}

func decodeAccountPrice(data json.RawMessage) (decimal.Decimal, error) {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil || len(pair) != 2 {
		return decimal.Decimal{}, fmt.Errorf("expected [data, \"base64\"] pair, got %s", string(data))
	}
	raw, err := base64.StdEncoding.DecodeString(pair[0])
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode base64: %w", err)
	}
	return ParsePythPrice(raw)
}

// ParsePythPrice decodes the aggregate price out of a raw Pyth price
// account buffer. No Pyth Go SDK appears anywhere in the example pack,
// so this reads the simplified offsets above directly with
// encoding/binary rather than pulling in a hand-rolled stub.
func ParsePythPrice(data []byte) (decimal.Decimal, error) {
	if len(data) < minAccountBytes {
		return decimal.Decimal{}, fmt.Errorf("account data too short: %d bytes", len(data))
	}
	magic := binary.LittleEndian.Uint32(data[offsetMagic:])
	if magic != pythMagic {
		return decimal.Decimal{}, fmt.Errorf("unexpected account magic %#x", magic)
	}
	expo := int32(binary.LittleEndian.Uint32(data[offsetExpo:]))
	aggPrice := int64(binary.LittleEndian.Uint64(data[offsetAggPrice:]))
	return decimal.New(aggPrice, expo), nil
}
