package decode

import "math"

// SolDecimals and DefaultTokenDecimals are the §4.3.1 base-unit scaling
// defaults; a token record may override DefaultTokenDecimals.
const (
	SolDecimals         = 9
	DefaultTokenDecimals = 6
)

// PumpFun bonding-curve constants (§4.3 item 4), fixed per the venue's
// initial-supply design and not recomputed per token.
const (
	pumpFunInitialVirtualTokenReserves = 1.073e9 * 1e6
	pumpFunTotalSellableTokens         = 7.931e8 * 1e6
)

// RaydiumLaunchpad's funding target, expressed in quote base units; set by
// the launchpad's own configuration and carried here as the one constant
// the §4.3 formula needs.
const raydiumTotalQuoteFundRaising = 85 * 1e9 // 85 SOL in lamports, the launchpad's documented graduation target.

// PriceFromReserves computes price = (quote/10^quoteDecimals) / (base/10^baseDecimals).
// Returns nil if either reserve is zero: price is undefined, not zero (§4.3.1).
func PriceFromReserves(baseReserve, quoteReserve uint64, baseDecimals, quoteDecimals int) *float64 {
	if baseReserve == 0 || quoteReserve == 0 {
		return nil
	}
	baseAmt := float64(baseReserve) / math.Pow10(baseDecimals)
	quoteAmt := float64(quoteReserve) / math.Pow10(quoteDecimals)
	price := quoteAmt / baseAmt
	return &price
}

// RaydiumProgress implements the SOL-raised-based formula: the launchpad is
// complete once realQuoteReserve reaches its funding target.
func RaydiumProgress(realQuoteReserve uint64) float64 {
	pct := float64(realQuoteReserve) / raydiumTotalQuoteFundRaising * 100
	return clampPct(pct)
}

// PumpFunProgress implements the tokens-sold-based formula: complete once
// virtualTokenReserves has drained from its initial value to the
// sellable-supply floor.
func PumpFunProgress(virtualTokenReserves uint64) float64 {
	sold := pumpFunInitialVirtualTokenReserves - float64(virtualTokenReserves)
	pct := sold / pumpFunTotalSellableTokens * 100
	return clampPct(pct)
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
