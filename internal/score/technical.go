package score

import "math"

// marketCapSaturationUsd is the USD market cap at which the marketCap
// component saturates (§4.5.1 "saturating at ≥ $1M").
const marketCapSaturationUsd = 1_000_000.0

// bondingCurveMax is the component's ceiling (§4.5.1: "0 at 0%, 83 at
// 100%").
const bondingCurveMax = 83.0

// TechnicalInputs is everything ComputeTechnical needs; the Engine
// assembles this from Store reads each time TechnicalScore is called.
type TechnicalInputs struct {
	MarketCapUsd           float64
	BondingCurveProgress   float64 // 0-100
	TradeCountLastHour     int
	DistinctBuyersLastHour int
	BuyCountLastHour       int
	SellCountLastHour      int
	// LargeSellSolLastHour is the SOL volume ComputeTechnical penalises as
	// selling pressure. Engine.TechnicalScore does not look at individual
	// sells: it sums the whole SOL volume of every last-hour candle whose
	// low is more than 15% below its open.
	LargeSellSolLastHour float64
	// RecoveredAfterSelloff earns the recovery credit. Engine.TechnicalScore
	// sets it when the last candle of the hour closes at or above the first
	// candle's open, whether or not a selloff occurred in between.
	RecoveredAfterSelloff bool
}

// Technical holds the four §4.5.1 components; Total is bounded [0,333].
type Technical struct {
	MarketCap       int
	BondingCurve    int
	TradingHealth   int
	SelloffResponse int
}

func (t Technical) Total() int {
	return t.MarketCap + t.BondingCurve + t.TradingHealth + t.SelloffResponse
}

// ComputeTechnical is the cheap, synchronous §4.5.1 score — it only reads
// data already in the Store, never calls out, and is recomputed on demand
// rather than persisted per-event.
//
// The exact piecewise constants below are a fixed calibration (see
// DESIGN.md's Open Question decisions); they are not re-derived per token
// and should be validated against real trading data before being treated
// as ground truth.
func ComputeTechnical(in TechnicalInputs) Technical {
	return Technical{
		MarketCap:       marketCapScore(in.MarketCapUsd),
		BondingCurve:    bondingCurveScore(in.BondingCurveProgress),
		TradingHealth:   tradingHealthScore(in),
		SelloffResponse: selloffResponseScore(in),
	}
}

func marketCapScore(mcapUsd float64) int {
	if mcapUsd <= 0 {
		return 0
	}
	pct := mcapUsd / marketCapSaturationUsd * 100
	return int(clamp(pct, 0, 100))
}

func bondingCurveScore(progress float64) int {
	pct := clamp(progress, 0, 100)
	return int(math.Round(pct / 100 * bondingCurveMax))
}

// tradingHealthScore (0-75) rewards trade volume, buyer breadth, and a
// buy/sell ratio close to 1, split 35/25/15.
func tradingHealthScore(in TechnicalInputs) int {
	volumeScore := clamp(float64(in.TradeCountLastHour)/50*35, 0, 35)
	buyerScore := clamp(float64(in.DistinctBuyersLastHour)/30*25, 0, 25)

	ratioScore := 0.0
	total := in.BuyCountLastHour + in.SellCountLastHour
	if total > 0 {
		ratio := float64(in.BuyCountLastHour) / float64(total)
		// peak at ratio=0.5 (buys == sells), falling off linearly to the
		// extremes where the book is entirely one-sided.
		ratioScore = clamp(15*(1-math.Abs(ratio-0.5)*2), 0, 15)
	}

	return int(math.Round(volumeScore + buyerScore + ratioScore))
}

// selloffResponseScore (0-75) starts from full credit and subtracts a
// penalty proportional to unanswered large-sell pressure, restoring credit
// once price has recovered.
func selloffResponseScore(in TechnicalInputs) int {
	const fullCredit = 75.0
	if in.LargeSellSolLastHour <= 0 {
		return int(fullCredit)
	}

	penalty := clamp(in.LargeSellSolLastHour*5, 0, fullCredit)
	score := fullCredit - penalty
	if in.RecoveredAfterSelloff {
		score = clamp(score+penalty*0.6, 0, fullCredit)
	}
	return int(math.Round(score))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
