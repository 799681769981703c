package score

import (
	"math/rand"
	"testing"

	"token-ingest-engine/internal/enrich"
	"token-ingest-engine/internal/store"
)

func TestMilestoneCrossedDetectsThresholdCrossing(t *testing.T) {
	if !MilestoneCrossed(8, 12) {
		t.Fatal("expected crossing 10 to register")
	}
	if MilestoneCrossed(12, 14) {
		t.Fatal("expected no crossing between two non-milestone values")
	}
	if !MilestoneCrossed(99, 100) {
		t.Fatal("expected crossing 100 to register")
	}
}

func TestPriorityForOrdersMilestoneAboveInstantAboveStaleAboveDefault(t *testing.T) {
	milestone, _ := PriorityFor(store.EligibleToken{}, true, false)
	instant, _ := PriorityFor(store.EligibleToken{}, false, true)
	stale, _ := PriorityFor(store.EligibleToken{HasHolderScore: true, LastHolderScoreAge: 3601}, false, false)
	def, _ := PriorityFor(store.EligibleToken{}, false, false)

	if !(milestone > instant && instant > stale && stale > def) {
		t.Fatalf("expected strict priority order, got milestone=%d instant=%d stale=%d default=%d",
			milestone, instant, stale, def)
	}
}

func TestAnalysisQueueDrainsHighestPriorityFirst(t *testing.T) {
	q := NewAnalysisQueue()
	q.Push(1, 100, reasonProgress, 20)
	q.Push(2, 400, reasonMilestone, 50)
	q.Push(3, 200, reasonStale, 10)

	first, reason, ok := q.Pop()
	if !ok || first != 2 || reason != reasonMilestone {
		t.Fatalf("expected token 2 (milestone) first, got %d/%s", first, reason)
	}
	second, _, _ := q.Pop()
	if second != 3 {
		t.Fatalf("expected token 3 second, got %d", second)
	}
	third, _, _ := q.Pop()
	if third != 1 {
		t.Fatalf("expected token 1 last, got %d", third)
	}
	if _, _, ok := q.Pop(); ok {
		t.Fatal("expected queue to be empty")
	}
}

func TestAnalysisQueueBreaksTiesByProgressDescending(t *testing.T) {
	q := NewAnalysisQueue()
	q.Push(1, 100, reasonProgress, 20)
	q.Push(2, 100, reasonProgress, 80)

	first, _, _ := q.Pop()
	if first != 2 {
		t.Fatalf("expected higher-progress token first on tie, got %d", first)
	}
}

func TestSampleHoldersReturnsAllBelowThreshold(t *testing.T) {
	holders := makeHolders(50)
	rng := rand.New(rand.NewSource(1))
	got := SampleHolders(holders, 100, rng)
	if len(got) != 50 {
		t.Fatalf("expected all 50 holders returned, got %d", len(got))
	}
}

func TestSampleHoldersReducesLargeSets(t *testing.T) {
	holders := makeHolders(1000)
	rng := rand.New(rand.NewSource(1))
	got := SampleHolders(holders, 500, rng)
	if len(got) >= 1000 {
		t.Fatalf("expected sampling to reduce set, got %d", len(got))
	}
	if len(got) == 0 {
		t.Fatal("expected a non-empty sample")
	}
}

func makeHolders(n int) []enrich.Holder {
	out := make([]enrich.Holder, n)
	for i := range out {
		out[i] = enrich.Holder{Owner: string(rune('a' + i%26)), Balance: "1000", Rank: i}
	}
	return out
}
