package score

import (
	"testing"
	"time"

	"token-ingest-engine/internal/errs"
)

func TestEstimateCostMatchesFormula(t *testing.T) {
	got := EstimateCost(2500, 0.5)
	// ceil(2500/1000) + 2*(2500*0.5) = 3 + 2500 = 2503
	if got != 2503 {
		t.Fatalf("expected 2503, got %d", got)
	}
}

func TestCreditTrackerHardStop(t *testing.T) {
	tr := NewCreditTracker(BudgetConfig{MonthlyCap: 1000, TargetPct: 50, HardStopPct: 85})
	now := time.Unix(1_700_000_000, 0)

	tr.Record(800, now)
	if err := tr.CheckBudget(now); err != nil {
		t.Fatalf("expected budget ok at 80%%, got %v", err)
	}

	tr.Record(100, now)
	if err := tr.CheckBudget(now); err != errs.ErrBudgetExhausted {
		t.Fatalf("expected ErrBudgetExhausted at 90%%, got %v", err)
	}
}

func TestCreditTrackerResetsOnNewMonth(t *testing.T) {
	tr := NewCreditTracker(DefaultBudgetConfig())
	month1 := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	month2 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tr.Record(9_000_000, month1)
	if tr.UsagePct(month1) < 80 {
		t.Fatalf("expected high usage in month 1, got %v", tr.UsagePct(month1))
	}
	if got := tr.UsagePct(month2); got != 0 {
		t.Fatalf("expected usage reset in month 2, got %v", got)
	}
}

func TestCreditTrackerWarningThresholdFiresOncePerCrossing(t *testing.T) {
	tr := NewCreditTracker(BudgetConfig{MonthlyCap: 100, TargetPct: 50, HardStopPct: 85})
	now := time.Unix(1_700_000_000, 0)

	tr.Record(55, now)
	pct, crossed := tr.CrossedWarningThreshold(now)
	if !crossed || pct != 50 {
		t.Fatalf("expected crossing 50, got pct=%d crossed=%v", pct, crossed)
	}

	_, crossedAgain := tr.CrossedWarningThreshold(now)
	if crossedAgain {
		t.Fatal("expected the 50%% threshold to fire only once")
	}
}
