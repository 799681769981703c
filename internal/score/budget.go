package score

import (
	"math"
	"sync"
	"time"

	"token-ingest-engine/internal/errs"
)

// BudgetConfig carries the §4.5.2 monthly credit policy. Config wires
// these from HOLDER_BUDGET/HOLDER_TARGET_PCT/HOLDER_HARD_STOP_PCT.
type BudgetConfig struct {
	MonthlyCap  int64
	TargetPct   float64
	HardStopPct float64
}

func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{MonthlyCap: 10_000_000, TargetPct: 62.5, HardStopPct: 85}
}

// CreditTracker enforces the monthly credit cap for the holder analyzer.
// It resets on the first Record, UsagePct (and so CheckBudget/AboveTarget)
// or CrossedWarningThreshold call that lands in a new calendar month.
type CreditTracker struct {
	cfg BudgetConfig

	mu         sync.Mutex
	used       int64
	periodKey  string
	warnedPcts map[int]bool
}

func NewCreditTracker(cfg BudgetConfig) *CreditTracker {
	return &CreditTracker{cfg: cfg, warnedPcts: make(map[int]bool)}
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

// EstimateCost is the §4.5.2 per-token cost estimate:
// ceil(holders/1000) + 2 × (holders × (1 − cacheHitRate)).
func EstimateCost(holders int, cacheHitRate float64) int64 {
	paginationCost := math.Ceil(float64(holders) / 1000.0)
	enrichmentCost := 2 * float64(holders) * (1 - cacheHitRate)
	return int64(paginationCost + enrichmentCost)
}

func (t *CreditTracker) rolloverLocked(now time.Time) {
	key := monthKey(now)
	if t.periodKey != key {
		t.periodKey = key
		t.used = 0
		t.warnedPcts = make(map[int]bool)
	}
}

// Record adds credits to the current month's usage.
func (t *CreditTracker) Record(credits int64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(now)
	t.used += credits
}

// UsagePct returns the current month's usage as a percentage of the cap.
func (t *CreditTracker) UsagePct(now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(now)
	if t.cfg.MonthlyCap == 0 {
		return 0
	}
	return float64(t.used) / float64(t.cfg.MonthlyCap) * 100
}

// CheckBudget returns errs.ErrBudgetExhausted once usage has crossed
// HardStopPct; the caller (the holder analyzer) must stop issuing external
// calls without returning the would-be credit spend.
func (t *CreditTracker) CheckBudget(now time.Time) error {
	if t.UsagePct(now) >= t.cfg.HardStopPct {
		return errs.ErrBudgetExhausted
	}
	return nil
}

// AboveTarget reports whether usage has reached TargetPct (62.5% by
// default, inside the 50–75% target band) or beyond, a signal the analyzer can use to throttle discretionary (not
// milestone/instant) analyses before the hard stop.
func (t *CreditTracker) AboveTarget(now time.Time) bool {
	return t.UsagePct(now) >= t.cfg.TargetPct
}

// CrossedWarningThreshold reports, at most once per threshold per month,
// whether usage just crossed one of 50/62/75/85 percent, so the caller
// can emit a creditWarning event exactly once per crossing.
func (t *CreditTracker) CrossedWarningThreshold(now time.Time) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(now)

	var pct float64
	if t.cfg.MonthlyCap != 0 {
		pct = float64(t.used) / float64(t.cfg.MonthlyCap) * 100
	}

	thresholds := []int{50, 62, 75, 85}
	for _, th := range thresholds {
		if pct >= float64(th) && !t.warnedPcts[th] {
			t.warnedPcts[th] = true
			return th, true
		}
	}
	return 0, false
}
