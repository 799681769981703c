package reconciler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"token-ingest-engine/internal/decode"
	"token-ingest-engine/internal/store"
)

// handleTradeRecord resolves ids and a USD price, then queues the trade
// onto the shared batch channel (§4.4 "Event append"). The channel's fixed
// capacity of 100 is the back-pressure bound: once full, Emit blocks the
// calling consumer until the batch loop drains it, rather than buffering
// unboundedly.
func (r *Reconciler) handleTradeRecord(ctx context.Context, rec *decode.TradeRecord) error {
	tokenID, poolID, ok := r.resolveIDs(ctx, rec.Mint, rec.PoolAddress)
	if !ok {
		return wrapReferentialMiss("trade", rec.Signature)
	}

	price := decimal.Zero
	if p := decode.PriceFromReserves(rec.PostBaseReserve, rec.PostQuoteReserve, decode.DefaultTokenDecimals, decode.SolDecimals); p != nil {
		price = decimal.NewFromFloat(*p)
	}

	tx := store.Transaction{
		Signature:        rec.Signature,
		BlockTime:        rec.BlockTime,
		PoolID:           poolID,
		TokenID:          tokenID,
		Slot:             rec.Slot,
		Type:             rec.Type,
		User:             rec.User,
		SolAmount:        rec.SolAmount,
		TokenAmount:      rec.TokenAmount,
		PricePerToken:    price,
		PreBaseReserve:   decimal.NewFromInt(int64(rec.PreBaseReserve)),
		PreQuoteReserve:  decimal.NewFromInt(int64(rec.PreQuoteReserve)),
		PostBaseReserve:  decimal.NewFromInt(int64(rec.PostBaseReserve)),
		PostQuoteReserve: decimal.NewFromInt(int64(rec.PostQuoteReserve)),
		FeeLamports:      rec.FeeLamports,
		Success:          rec.Success,
		RawMetadata:      rec.RawMetadata,
	}

	if r.metrics != nil {
		if len(r.tradeCh) == cap(r.tradeCh) {
			r.metrics.BackPressurePauseTotal.WithLabelValues("trade").Inc()
		}
		r.metrics.BatchQueueDepth.WithLabelValues("trade").Set(float64(len(r.tradeCh)))
	}

	select {
	case r.tradeCh <- tx:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tradeBatchLoop flushes the pending batch at B=cfg.BatchSize or
// T=cfg.BatchTimeout, oldest-first (append order is preserved). At most
// r.flushSem's capacity (2) batches are in flight at once. Trades whose ids
// cannot be resolved are dropped by handleTradeRecord before they reach a
// batch, so the rest still get written (AppendTransactionBatch is per-row
// idempotent, so a failed flush is safe to retry wholesale).
func (r *Reconciler) tradeBatchLoop(ctx context.Context) {
	batch := make([]store.Transaction, 0, r.cfg.BatchSize)
	timer := time.NewTimer(r.cfg.BatchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		toFlush := batch
		batch = make([]store.Transaction, 0, r.cfg.BatchSize)

		r.flushSem <- struct{}{}
		go func(txs []store.Transaction) {
			defer func() { <-r.flushSem }()
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := r.store.AppendTransactionBatch(flushCtx, txs); err != nil {
				log.Error().Err(err).Int("count", len(txs)).Msg("trade batch flush failed")
			}
		}(toFlush)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case tx := <-r.tradeCh:
			batch = append(batch, tx)
			if len(batch) >= r.cfg.BatchSize {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(r.cfg.BatchTimeout)
			}
		case <-timer.C:
			flush()
			timer.Reset(r.cfg.BatchTimeout)
		}
	}
}
