package score

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"token-ingest-engine/internal/enrich"
)

// HolderScoreInputs is everything ComputeHolderScore needs, assembled by
// the analyzer from a sampled holder page plus per-wallet enrichment.
type HolderScoreInputs struct {
	Holders []enrich.Holder

	// per-wallet classification aligned 1:1 with Holders by owner address.
	BotOwners        map[string]bool
	SmartMoneyOwners map[string]bool
	WalletAgeDays    map[string]int

	ActiveHolders24h int
	// Velocity is transfers-per-holder over the last 24h, a proxy for
	// organic trading activity vs. wash trading.
	Velocity float64
	// OrganicGrowthScore (0-1) is a pre-computed signal from holder-count
	// trend shape; owned by the caller since it requires historical
	// snapshots this package does not itself retain.
	OrganicGrowthScore float64
}

// HolderScoreResult is the computed §4.5.2 score plus the raw metrics
// GenerateAlerts' thresholds key off of.
type HolderScoreResult struct {
	DistributionScore int
	QualityScore      int
	ActivityScore     int

	Gini                 decimal.Decimal
	Top1PctConcentration decimal.Decimal
	HolderCount          int
	BotRatio             decimal.Decimal
	SmartMoneyRatio      decimal.Decimal
}

func (r HolderScoreResult) Total() int {
	return r.DistributionScore + r.QualityScore + r.ActivityScore
}

// ComputeHolderScore turns a sampled, enriched holder set into the three
// §4.5.2 sub-scores. Gini/top-1%/holder-count drive distribution; bot
// ratio/smart-money ratio/mean wallet age drive quality; active-holder
// ratio/organic-growth/velocity drive activity.
func ComputeHolderScore(in HolderScoreInputs) HolderScoreResult {
	balances := balancesOf(in.Holders)
	gini := giniCoefficient(balances)
	top1 := top1PctConcentration(balances)
	holderCount := len(in.Holders)

	botCount, smartCount, ageSum := 0, 0, 0
	for _, h := range in.Holders {
		if in.BotOwners[h.Owner] {
			botCount++
		}
		if in.SmartMoneyOwners[h.Owner] {
			smartCount++
		}
		ageSum += in.WalletAgeDays[h.Owner]
	}
	botRatio := ratio(botCount, holderCount)
	smartRatio := ratio(smartCount, holderCount)
	meanAgeDays := 0.0
	if holderCount > 0 {
		meanAgeDays = float64(ageSum) / float64(holderCount)
	}

	activeRatio := ratio(in.ActiveHolders24h, holderCount)

	return HolderScoreResult{
		DistributionScore:    distributionScore(gini, top1, holderCount),
		QualityScore:         qualityScore(botRatio, smartRatio, meanAgeDays),
		ActivityScore:        activityScore(activeRatio, in.OrganicGrowthScore, in.Velocity),
		Gini:                 decimal.NewFromFloat(gini),
		Top1PctConcentration: decimal.NewFromFloat(top1),
		HolderCount:          holderCount,
		BotRatio:             decimal.NewFromFloat(botRatio),
		SmartMoneyRatio:      decimal.NewFromFloat(smartRatio),
	}
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func balancesOf(holders []enrich.Holder) []float64 {
	out := make([]float64, len(holders))
	for i, h := range holders {
		out[i] = balanceOf(h)
	}
	sort.Float64s(out)
	return out
}

// giniCoefficient computes the standard discrete Gini coefficient over
// sorted (ascending) balances.
func giniCoefficient(sortedBalances []float64) float64 {
	n := len(sortedBalances)
	if n == 0 {
		return 0
	}
	var sumAbsDiff, sum float64
	for i, bi := range sortedBalances {
		sum += bi
		for _, bj := range sortedBalances[i+1:] {
			sumAbsDiff += math.Abs(bi - bj)
		}
	}
	if sum == 0 {
		return 0
	}
	return sumAbsDiff / (float64(n) * sum)
}

// top1PctConcentration returns the fraction of total balance held by the
// top 1% of holders (minimum of 1 holder), over sorted-ascending balances.
func top1PctConcentration(sortedBalances []float64) float64 {
	n := len(sortedBalances)
	if n == 0 {
		return 0
	}
	top1Count := n / 100
	if top1Count < 1 {
		top1Count = 1
	}

	var total, topSum float64
	for _, b := range sortedBalances {
		total += b
	}
	for _, b := range sortedBalances[n-top1Count:] {
		topSum += b
	}
	if total == 0 {
		return 0
	}
	return topSum / total
}

// distributionScore (0-111): rewards a low Gini, low top-1% concentration,
// and a larger holder count, each weighted equally.
func distributionScore(gini, top1Pct float64, holderCount int) int {
	giniComponent := clamp((1-gini)*37, 0, 37)
	concentrationComponent := clamp((1-top1Pct)*37, 0, 37)
	countComponent := clamp(float64(holderCount)/2000*37, 0, 37)
	return int(math.Round(giniComponent + concentrationComponent + countComponent))
}

// qualityScore (0-111): penalizes a high bot ratio, rewards smart-money
// presence, rewards older average wallet age.
func qualityScore(botRatio, smartMoneyRatio, meanAgeDays float64) int {
	botComponent := clamp((1-botRatio)*50, 0, 50)
	smartComponent := clamp(smartMoneyRatio*300, 0, 31)
	ageComponent := clamp(meanAgeDays/180*30, 0, 30)
	return int(math.Round(botComponent + smartComponent + ageComponent))
}

// activityScore (0-111): rewards a high active-holder ratio, organic
// growth, and moderate velocity (too high suggests wash trading).
func activityScore(activeRatio, organicGrowth, velocity float64) int {
	activeComponent := clamp(activeRatio*50, 0, 50)
	growthComponent := clamp(organicGrowth*36, 0, 36)

	velocityComponent := 0.0
	switch {
	case velocity <= 0:
		velocityComponent = 0
	case velocity <= 3:
		velocityComponent = clamp(velocity/3*25, 0, 25)
	default:
		// velocity beyond 3 transfers/holder/day looks like wash trading;
		// taper the credit back down rather than keep rewarding it.
		velocityComponent = clamp(25-(velocity-3)*5, 0, 25)
	}

	return int(math.Round(activeComponent + growthComponent + velocityComponent))
}
