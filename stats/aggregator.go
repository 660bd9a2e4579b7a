// Package stats accumulates the outcomes of cache accesses.
package stats

import (
	"fmt"
	"sync"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// Summary is the result of a simulation run.
type Summary struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// Accesses returns the number of accesses counted in the summary.
func (s Summary) Accesses() uint64 {
	return s.Hits + s.Misses
}

// HitRate returns the fraction of accesses that hit, or 0 without accesses.
func (s Summary) HitRate() float64 {
	if s.Accesses() == 0 {
		return 0
	}

	return float64(s.Hits) / float64(s.Accesses())
}

func (s Summary) String() string {
	return fmt.Sprintf("hits:%d misses:%d evictions:%d",
		s.Hits, s.Misses, s.Evictions)
}

// Aggregator counts hits, misses and evictions. It is a hook that can be
// attached to a cache. Summary may be called from another goroutine while
// outcomes are being recorded.
type Aggregator struct {
	lock    sync.Mutex
	summary Summary
}

// NewAggregator creates an aggregator with all counters at zero.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Func records the outcome of cache accesses and ignores everything else.
func (a *Aggregator) Func(ctx hooking.HookCtx) {
	if ctx.Pos != cache.HookPosAccess {
		return
	}

	item, ok := ctx.Item.(cache.AccessItem)
	if !ok {
		return
	}

	a.Record(item.Outcome)
}

// Record increments the counters implied by one outcome. An access that
// evicts counts as one miss and one eviction.
func (a *Aggregator) Record(outcome cache.Outcome) {
	a.lock.Lock()
	defer a.lock.Unlock()

	switch outcome.Kind {
	case cache.Hit:
		a.summary.Hits++
	case cache.Miss:
		a.summary.Misses++
	case cache.MissEviction:
		a.summary.Misses++
		a.summary.Evictions++
	default:
		panic(fmt.Sprintf("unknown outcome kind %d", outcome.Kind))
	}
}

// Summary returns the counters recorded so far.
func (a *Aggregator) Summary() Summary {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.summary
}

// Reset sets all the counters back to zero.
func (a *Aggregator) Reset() {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.summary = Summary{}
}
