// Package consumers hosts the block-subscription consumer catalogue (§4.3):
// one supervised worker per subscription, each decoding updates with
// internal/decode and handing the result to a Sink (the Reconciler).
package consumers

import (
	"context"

	"github.com/rs/zerolog/log"

	"token-ingest-engine/internal/decode"
	"token-ingest-engine/internal/feed"
	"token-ingest-engine/internal/metrics"
)

// Sink is the single write path a Consumer emits normalized records to.
// internal/reconciler.Reconciler implements this; kept as an interface here
// so consumers never import the Reconciler's batching/caching internals.
type Sink interface {
	Emit(ctx context.Context, rec decode.Record) error
}

// AccountDecoder turns one account-ownership update into a Record.
type AccountDecoder func(*decode.AccountUpdate) decode.Record

// TransactionDecoder turns one transaction-include update into a Record.
type TransactionDecoder func(*decode.TransactionUpdate) decode.Record

// Consumer is the shared skeleton every catalogue entry in §4.3 runs:
// acquire(subscription) -> for each update: decode -> if relevant: emit ->
// on error: release and reconnect.
type Consumer struct {
	Name           string
	SubscriptionID string
	Filter         feed.Filter
	Pool           *feed.Client
	Sink           Sink

	DecodeAccount     AccountDecoder
	DecodeTransaction TransactionDecoder

	Metrics *metrics.Registry
}

// Run blocks until ctx is cancelled or the pool gives up acquiring: it
// gives up once ctx is done (per the pool's backoff contract), or at once
// with errs.ErrInvariant when the subscription id is already active, in
// which case Run returns that error.
// On cancel: the current stream is released within §4.3.2's 1s bound and
// Run returns nil; no update is emitted after cancellation is observed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		stream, err := c.Pool.Acquire(ctx, c.SubscriptionID, c.Filter)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Str("consumer", c.Name).Msg("giving up on subscription")
			return err
		}

		c.drain(ctx, stream)

		if ctx.Err() != nil {
			return nil
		}
		// Stream ended on a transport error; Acquire's own backoff governs
		// the pace of the next dial attempt.
	}
}

func (c *Consumer) drain(ctx context.Context, stream *feed.Stream) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Pool.Release(c.SubscriptionID)
		case <-done:
		}
	}()
	defer close(done)

	for u := range stream.Updates() {
		rec := c.decode(u)
		if rec.Kind == decode.KindUnknown {
			if c.Metrics != nil {
				c.Metrics.DecodeSkipTotal.WithLabelValues(c.Name).Inc()
			}
			continue
		}
		if err := c.Sink.Emit(ctx, rec); err != nil {
			log.Warn().Err(err).Str("consumer", c.Name).Msg("emit failed")
		}
	}

	_ = c.Pool.Release(c.SubscriptionID)
}

func (c *Consumer) decode(u feed.Update) decode.Record {
	switch u.Kind {
	case feed.UpdateKindAccount:
		if c.DecodeAccount != nil && u.Account != nil {
			return c.DecodeAccount(u.Account)
		}
	case feed.UpdateKindTransaction:
		if c.DecodeTransaction != nil && u.Transaction != nil {
			return c.DecodeTransaction(u.Transaction)
		}
	}
	return decode.Record{Kind: decode.KindUnknown}
}
