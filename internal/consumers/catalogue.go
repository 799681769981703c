package consumers

import (
	"token-ingest-engine/internal/decode"
	"token-ingest-engine/internal/feed"
	"token-ingest-engine/internal/store"
)

// NewMintDetector watches the Raydium launchpad program's transactions for
// `initialize` instructions, emitting TokenCreated and PoolCreated (§4.3
// item 1).
func NewMintDetector(pool *feed.Client, sink Sink, launchpadProgram string) *Consumer {
	return &Consumer{
		Name:           "mint-detector",
		SubscriptionID: "mint-detector:" + launchpadProgram,
		Filter:         feed.Filter{TransactionIncludes: []string{launchpadProgram}},
		Pool:           pool,
		Sink:           sink,
		DecodeTransaction: func(tx *decode.TransactionUpdate) decode.Record {
			if r := decode.DecodeRaydiumMint(tx); r.Kind != decode.KindUnknown {
				return r
			}
			return decode.DecodeRaydiumLaunchpadTransaction(tx)
		},
	}
}

// NewLaunchpadAccount watches every account owned by the launchpad program
// and decodes pool state with the Raydium progress formula (§4.3 item 2).
func NewLaunchpadAccount(pool *feed.Client, sink Sink, launchpadProgram string) *Consumer {
	return &Consumer{
		Name:           "launchpad-account",
		SubscriptionID: "launchpad-account:" + launchpadProgram,
		Filter:         feed.Filter{OwnerPrograms: []string{launchpadProgram}},
		Pool:           pool,
		Sink:           sink,
		DecodeAccount:  decode.DecodeRaydiumLaunchpadAccount,
	}
}

// NewLaunchpadTransactions watches launchpad transactions, emitting
// TradeRecord with event-authoritative amounts for buys and sells (§4.3
// item 3); add-liquidity and remove-liquidity transactions are skipped.
func NewLaunchpadTransactions(pool *feed.Client, sink Sink, launchpadProgram string) *Consumer {
	return &Consumer{
		Name:              "launchpad-transactions",
		SubscriptionID:    "launchpad-transactions:" + launchpadProgram,
		Filter:            feed.Filter{TransactionIncludes: []string{launchpadProgram}},
		Pool:              pool,
		Sink:              sink,
		DecodeTransaction: decode.DecodeRaydiumLaunchpadTransaction,
	}
}

// NewPumpFunTrade watches PumpFun program buy/sell transactions, emitting a
// TradeRecord and a PoolStateUpdate carrying the tokens-sold progress
// formula (§4.3 item 4).
func NewPumpFunTrade(pool *feed.Client, sink Sink, pumpfunProgram string) *Consumer {
	return &Consumer{
		Name:              "pumpfun-trade",
		SubscriptionID:    "pumpfun-trade:" + pumpfunProgram,
		Filter:            feed.Filter{TransactionIncludes: []string{pumpfunProgram}},
		Pool:              pool,
		Sink:              sink,
		DecodeTransaction: decode.DecodePumpFunTrade,
	}
}

// NewPumpFunBondingCurveAccount watches PumpFun bonding-curve accounts for
// the completion flag, emitting BondingCurveComplete (§4.3 item 5).
func NewPumpFunBondingCurveAccount(pool *feed.Client, sink Sink, pumpfunProgram string) *Consumer {
	return &Consumer{
		Name:           "pumpfun-bonding-curve-account",
		SubscriptionID: "pumpfun-bonding-curve:" + pumpfunProgram,
		Filter:         feed.Filter{OwnerPrograms: []string{pumpfunProgram}},
		Pool:           pool,
		Sink:           sink,
		DecodeAccount:  decode.DecodePumpFunBondingCurveAccount,
	}
}

// NewGraduationDetector watches the migration program's transactions and
// resolves the graduating mint via the §4.3.1 fallback chain, emitting
// Graduated{mint, targetAmm, graduationSig} (§4.3 item 6). targetAmm is
// configuration: a migration program routes to exactly one AMM venue.
func NewGraduationDetector(pool *feed.Client, sink Sink, migrationProgram string, targetAmm store.Venue) *Consumer {
	return &Consumer{
		Name:           "graduation-detector",
		SubscriptionID: "graduation-detector:" + migrationProgram,
		Filter:         feed.Filter{TransactionIncludes: []string{migrationProgram}},
		Pool:           pool,
		Sink:           sink,
		DecodeTransaction: func(tx *decode.TransactionUpdate) decode.Record {
			return decode.DecodeGraduation(tx, targetAmm)
		},
	}
}

// NewPumpSwapPoolCreation watches for PumpSwap pools opened for graduated
// tokens, emitting PoolCreated{venue=pumpswap} (§4.3 item 7).
func NewPumpSwapPoolCreation(pool *feed.Client, sink Sink, pumpswapProgram string) *Consumer {
	return &Consumer{
		Name:              "pumpswap-pool-creation",
		SubscriptionID:    "pumpswap-pool-creation:" + pumpswapProgram,
		Filter:            feed.Filter{TransactionIncludes: []string{pumpswapProgram}},
		Pool:              pool,
		Sink:              sink,
		DecodeTransaction: decode.DecodePumpSwapPoolCreation,
	}
}

// NewPumpSwapTradePrice watches PumpSwap buy/sell/swap transactions,
// emitting TradeRecord plus a price-only PoolStateUpdate derived from
// post-swap reserves (§4.3 item 7, Trade and Price folded into one
// subscription since both come off the same event payload).
func NewPumpSwapTradePrice(pool *feed.Client, sink Sink, pumpswapProgram string) *Consumer {
	return &Consumer{
		Name:              "pumpswap-trade-price",
		SubscriptionID:    "pumpswap-trade-price:" + pumpswapProgram,
		Filter:            feed.Filter{TransactionIncludes: []string{pumpswapProgram}},
		Pool:              pool,
		Sink:              sink,
		DecodeTransaction: decode.DecodePumpSwapTrade,
	}
}
