package state

import (
	"sort"
)

// BroadcastPayload is a nodes replicated broadcast state.
//
// The value set only ever grows, so merging is idempotent and commutative and
// replicas converge regardless of delivery order.
type BroadcastPayload struct {
	values map[uint64]struct{}

	ledger *Ledger

	// watermark is the size of the value set when it was last disseminated.
	watermark int
}

func NewBroadcastPayload(dedupCapacity int) *BroadcastPayload {
	return &BroadcastPayload{
		values: make(map[uint64]struct{}),
		ledger: NewLedger(dedupCapacity),
	}
}

// Add adds v to the value set. Returns whether v was new.
func (p *BroadcastPayload) Add(v uint64) bool {
	if _, ok := p.values[v]; ok {
		return false
	}
	p.values[v] = struct{}{}
	return true
}

// MergeValues unions values into the value set. Returns the number of values
// that were new.
func (p *BroadcastPayload) MergeValues(values []uint64) int {
	added := 0
	for _, v := range values {
		if p.Add(v) {
			added++
		}
	}
	return added
}

// SnapshotValues returns a sorted copy of the value set.
func (p *BroadcastPayload) SnapshotValues() []uint64 {
	values := make([]uint64, 0, len(p.values))
	for v := range p.values {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i] < values[j]
	})
	return values
}

// Len returns the size of the value set.
func (p *BroadcastPayload) Len() int {
	return len(p.values)
}

// Observe records a gossip origin in the dedup ledger, returning true only the
// first time the origin is seen.
func (p *BroadcastPayload) Observe(origin Origin) bool {
	return p.ledger.Observe(origin)
}

// Ledger returns the dedup ledger.
func (p *BroadcastPayload) Ledger() *Ledger {
	return p.ledger
}

// Watermark returns the size of the value set when last disseminated.
func (p *BroadcastPayload) Watermark() int {
	return p.watermark
}

// Pending returns whether the value set has grown since it was last
// disseminated.
func (p *BroadcastPayload) Pending() bool {
	return len(p.values) != p.watermark
}

// MarkDisseminated advances the watermark to the current value set size.
func (p *BroadcastPayload) MarkDisseminated() {
	p.watermark = len(p.values)
}
