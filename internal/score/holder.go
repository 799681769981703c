package score

import (
	"container/heap"
	"math/rand"
	"sort"
	"strconv"

	"token-ingest-engine/internal/enrich"
	"token-ingest-engine/internal/store"
)

// milestones are the progress crossings that earn top analysis priority
// (§4.5.2).
var milestones = []float64{10, 15, 25, 50, 75, 90, 95, 100}

// priorityReason documents why a candidate was queued, purely for logging
// and alert context.
type priorityReason string

const (
	reasonMilestone priorityReason = "milestone"
	reasonInstant   priorityReason = "instant"
	reasonStale     priorityReason = "stale"
	reasonProgress  priorityReason = "progress"
)

// MilestoneCrossed reports whether progress moved from below to at/above
// any configured milestone between two observations.
func MilestoneCrossed(prev, next float64) bool {
	for _, m := range milestones {
		if prev < m && next >= m {
			return true
		}
	}
	return false
}

// candidate is one entry in the holder-analysis priority queue.
type candidate struct {
	tokenID  int64
	priority int
	reason   priorityReason
	progress float64
	index    int
}

// priorityQueue orders candidates highest-priority first, ties broken by
// progress descending (§4.5.2's "otherwise by progress descending").
type priorityQueue []*candidate

func (q priorityQueue) Len() int { return len(q) }
func (q priorityQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].progress > q[j].progress
}
func (q priorityQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *priorityQueue) Push(x any) {
	c := x.(*candidate)
	c.index = len(*q)
	*q = append(*q, c)
}
func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return c
}

// PriorityFor computes the §4.5.2 priority tier for an eligible token. A
// higher return value is drained first. milestoneCrossed and instant are
// computed by the caller (milestoneCrossed from the progress delta since
// the candidate's last observation, instant from a fresh technical score
// ≥ 180 with no prior holder score).
func PriorityFor(e store.EligibleToken, milestoneCrossed, instant bool) (int, priorityReason) {
	switch {
	case milestoneCrossed:
		return 400, reasonMilestone
	case instant:
		return 300, reasonInstant
	case e.HasHolderScore && e.LastHolderScoreAge > 30*60:
		return 200, reasonStale
	default:
		return 100, reasonProgress
	}
}

// AnalysisQueue wraps container/heap's max-heap shape behind Push/Pop —
// the pack carries no third-party priority-queue library, so this is the
// one place the standard library is used by design rather than as a
// fallback (see DESIGN.md).
type AnalysisQueue struct {
	q priorityQueue
}

func NewAnalysisQueue() *AnalysisQueue {
	q := &AnalysisQueue{}
	heap.Init(&q.q)
	return q
}

func (a *AnalysisQueue) Push(tokenID int64, priority int, reason priorityReason, progress float64) {
	heap.Push(&a.q, &candidate{tokenID: tokenID, priority: priority, reason: reason, progress: progress})
}

func (a *AnalysisQueue) Len() int { return a.q.Len() }

// Pop returns the highest-priority candidate, or ok=false if empty.
func (a *AnalysisQueue) Pop() (tokenID int64, reason priorityReason, ok bool) {
	if a.q.Len() == 0 {
		return 0, "", false
	}
	c := heap.Pop(&a.q).(*candidate)
	return c.tokenID, c.reason, true
}

// SampleHolders implements §4.5.2's sampling policy: for a page exceeding
// one of the configured thresholds, keep the top 40% by balance, the
// bottom 10%, and a uniformly-random 50% of the middle, rather than
// walking every holder.
func SampleHolders(holders []enrich.Holder, threshold int, rng *rand.Rand) []enrich.Holder {
	n := len(holders)
	if n <= threshold {
		return holders
	}

	sorted := make([]enrich.Holder, n)
	copy(sorted, holders)
	sort.Slice(sorted, func(i, j int) bool {
		return balanceOf(sorted[i]) > balanceOf(sorted[j])
	})

	topN := n * 40 / 100
	bottomN := n * 10 / 100
	middleStart, middleEnd := topN, n-bottomN
	if middleEnd < middleStart {
		middleEnd = middleStart
	}
	middle := sorted[middleStart:middleEnd]

	middleSampleSize := len(middle) / 2
	shuffled := make([]enrich.Holder, len(middle))
	copy(shuffled, middle)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	if middleSampleSize > len(shuffled) {
		middleSampleSize = len(shuffled)
	}

	out := make([]enrich.Holder, 0, topN+bottomN+middleSampleSize)
	out = append(out, sorted[:topN]...)
	out = append(out, shuffled[:middleSampleSize]...)
	out = append(out, sorted[middleEnd:]...)
	return out
}

// balanceOf parses a holder's balance for ranking only; float64 precision
// is acceptable here since the result never leaves this sort.
func balanceOf(h enrich.Holder) float64 {
	v, _ := strconv.ParseFloat(h.Balance, 64)
	return v
}
