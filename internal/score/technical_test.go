package score

import "testing"

func TestMarketCapScoreSaturatesAtOneMillion(t *testing.T) {
	if got := marketCapScore(2_000_000); got != 100 {
		t.Fatalf("expected saturation at 100, got %d", got)
	}
	if got := marketCapScore(500_000); got != 50 {
		t.Fatalf("expected 50 at half saturation, got %d", got)
	}
	if got := marketCapScore(0); got != 0 {
		t.Fatalf("expected 0 at zero mcap, got %d", got)
	}
}

func TestBondingCurveScoreIsMonotoneAndBounded(t *testing.T) {
	if got := bondingCurveScore(0); got != 0 {
		t.Fatalf("expected 0 at 0%%, got %d", got)
	}
	if got := bondingCurveScore(100); got != bondingCurveMax {
		t.Fatalf("expected %v at 100%%, got %d", bondingCurveMax, got)
	}
	low := bondingCurveScore(25)
	high := bondingCurveScore(75)
	if !(low < high) {
		t.Fatalf("expected monotone increase, got low=%d high=%d", low, high)
	}
}

func TestTradingHealthScoreRewardsBalancedBook(t *testing.T) {
	balanced := tradingHealthScore(TechnicalInputs{
		TradeCountLastHour: 50, DistinctBuyersLastHour: 30, BuyCountLastHour: 25, SellCountLastHour: 25,
	})
	oneSided := tradingHealthScore(TechnicalInputs{
		TradeCountLastHour: 50, DistinctBuyersLastHour: 30, BuyCountLastHour: 50, SellCountLastHour: 0,
	})
	if !(balanced > oneSided) {
		t.Fatalf("expected balanced book to score higher, balanced=%d oneSided=%d", balanced, oneSided)
	}
}

func TestSelloffResponseScoreCreditsRecovery(t *testing.T) {
	noSell := selloffResponseScore(TechnicalInputs{})
	if noSell != 75 {
		t.Fatalf("expected full credit with no large sells, got %d", noSell)
	}

	unrecovered := selloffResponseScore(TechnicalInputs{LargeSellSolLastHour: 5})
	recovered := selloffResponseScore(TechnicalInputs{LargeSellSolLastHour: 5, RecoveredAfterSelloff: true})
	if !(recovered > unrecovered) {
		t.Fatalf("expected recovery to raise the score, unrecovered=%d recovered=%d", unrecovered, recovered)
	}
}

func TestComputeTechnicalTotalWithinBounds(t *testing.T) {
	got := ComputeTechnical(TechnicalInputs{
		MarketCapUsd: 250_000, BondingCurveProgress: 50,
		TradeCountLastHour: 120, DistinctBuyersLastHour: 60,
		BuyCountLastHour: 61, SellCountLastHour: 59,
	})
	if got.Total() < 0 || got.Total() > 333 {
		t.Fatalf("expected total within [0,333], got %d", got.Total())
	}
}
