package reconciler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"token-ingest-engine/internal/decode"
	"token-ingest-engine/internal/store"
)

// handleTokenCreated upserts a new token row (§4.4 "Entity upsert"). A race
// with another writer inserting the same mint is resolved inside
// Store.UpsertToken by re-reading the winning row, never surfaced here.
func (r *Reconciler) handleTokenCreated(ctx context.Context, rec *decode.TokenCreated) error {
	decimals := rec.Decimals
	if decimals == 0 {
		decimals = decode.DefaultTokenDecimals
	}

	id, err := r.store.UpsertToken(ctx, rec.Mint, store.TokenFields{
		Venue:        rec.Venue,
		Decimals:     decimals,
		CreationSig:  rec.CreationSig,
		CreationTime: rec.CreationTime,
		Creator:      rec.Creator,
	})
	if err != nil {
		return err
	}
	r.cachePut(rec.Mint, id, 0)
	return nil
}

// handlePoolCreated upserts a pool row once its owning token is known; a
// pool for an unresolvable token is dropped with a warning, never used to
// synthesize a token (§4.4).
func (r *Reconciler) handlePoolCreated(ctx context.Context, rec *decode.PoolCreated) error {
	mint := rec.TokenMint
	if mint == "" {
		mint = rec.BaseMint
	}

	token, err := r.store.GetTokenByMint(ctx, mint)
	if err != nil {
		return err
	}
	if token == nil {
		log.Warn().Str("mint", mint).Str("pool", rec.PoolAddress).Msg("pool created for unresolved token, dropping")
		r.incUnresolved("token")
		return wrapReferentialMiss("token for pool", rec.PoolAddress)
	}

	poolID, err := r.store.UpsertPool(ctx, rec.PoolAddress, store.PoolFields{
		TokenID:   token.ID,
		BaseMint:  rec.BaseMint,
		QuoteMint: rec.QuoteMint,
		Venue:     rec.Venue,
	})
	if err != nil {
		return err
	}

	r.cachePut(mint, token.ID, poolID)
	r.maybeLinkGraduatedPool(ctx, token, poolID)
	return nil
}

// handleGraduated marks the token graduated and, if a pool for the target
// AMM already exists within POOL_MATCH_WINDOW, links it immediately; the
// reverse ordering (pool arrives after the graduation event) is handled by
// maybeLinkGraduatedPool from handlePoolCreated.
func (r *Reconciler) handleGraduated(ctx context.Context, rec *decode.Graduated) error {
	token, err := r.store.GetTokenByMint(ctx, rec.Mint)
	if err != nil {
		return err
	}
	if token == nil {
		log.Warn().Str("mint", rec.Mint).Msg("graduation for unresolved token, dropping")
		r.incUnresolved("token")
		return wrapReferentialMiss("token for graduation", rec.Mint)
	}

	if err := r.store.MarkTokenGraduated(ctx, token.ID, rec.GraduationSig, rec.GraduationTime); err != nil {
		return err
	}

	pool, err := r.store.GetGraduatedPoolCandidate(ctx, token.ID, rec.TargetAmm, rec.GraduationTime)
	if err != nil {
		log.Warn().Err(err).Str("mint", rec.Mint).Msg("graduated-pool candidate lookup failed")
		return nil
	}
	if pool != nil {
		if err := r.store.MarkPoolGraduated(ctx, pool.ID); err != nil {
			log.Warn().Err(err).Int64("pool", pool.ID).Msg("failed to mark candidate pool graduated")
		}
	}
	return nil
}

// maybeLinkGraduatedPool covers the ordering where Graduated arrives before
// the target AMM's PoolCreated: if the token is already graduated and this
// pool appeared within POOL_MATCH_WINDOW of that graduation, it is the
// token's graduated pool.
func (r *Reconciler) maybeLinkGraduatedPool(ctx context.Context, token *store.Token, poolID int64) {
	if !token.IsGraduated {
		return
	}
	if time.Now().Unix()-token.GraduationTime > int64(r.cfg.PoolMatchWindow.Seconds()) {
		return
	}
	if err := r.store.MarkPoolGraduated(ctx, poolID); err != nil {
		log.Warn().Err(err).Int64("pool", poolID).Msg("failed to link newly created pool as graduated")
	}
}
