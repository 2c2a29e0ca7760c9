package llm

import (
	"sync"

	"FeedDigest/internal/ports"
)

// UsageTracker accumulates token counts across every completion of a run.
// A nil tracker ignores records.
type UsageTracker struct {
	mu     sync.Mutex
	totals UsageTotals

	inputPerMillion  float64
	outputPerMillion float64
}

var _ ports.UsageMeter = (*UsageTracker)(nil)

// UsageTotals is a snapshot of the tracker.
type UsageTotals struct {
	Calls        int
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// NewUsageTracker prices tokens at the given USD rates per million.
func NewUsageTracker(inputPerMillion, outputPerMillion float64) *UsageTracker {
	return &UsageTracker{inputPerMillion: inputPerMillion, outputPerMillion: outputPerMillion}
}

// Record adds one completion. Counters only grow.
func (u *UsageTracker) Record(usage Usage) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	u.totals.Calls++
	u.totals.InputTokens += max(usage.PromptTokens, 0)
	u.totals.OutputTokens += max(usage.CompletionTokens, 0)
	u.totals.TotalTokens += max(usage.TotalTokens, 0)
}

// Totals returns a copy of the counters.
func (u *UsageTracker) Totals() UsageTotals {
	if u == nil {
		return UsageTotals{}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totals
}

// TotalTokens returns the summed total_tokens of every recorded completion.
func (u *UsageTracker) TotalTokens() int {
	return u.Totals().TotalTokens
}

// EstimateCost returns the USD cost of the tokens recorded so far.
func (u *UsageTracker) EstimateCost() float64 {
	if u == nil {
		return 0
	}
	t := u.Totals()
	return float64(t.InputTokens)/1_000_000*u.inputPerMillion +
		float64(t.OutputTokens)/1_000_000*u.outputPerMillion
}
