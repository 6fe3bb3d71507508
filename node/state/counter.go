package state

// CounterPayload is a grow-only counter. Each node owns one entry which only
// it increments; the counter value is the sum of all entries.
type CounterPayload struct {
	entries map[string]uint64
}

func NewCounterPayload() *CounterPayload {
	return &CounterPayload{
		entries: make(map[string]uint64),
	}
}

// Add increments the owners entry by delta. Must only be called by the
// owning node.
func (p *CounterPayload) Add(owner string, delta uint64) uint64 {
	p.entries[owner] += delta
	return p.entries[owner]
}

// Merge applies a gossiped entry, keeping the larger of the cached and
// received values. Entries only grow at their owner.
//
// Returns whether the entry changed.
func (p *CounterPayload) Merge(owner string, value uint64) bool {
	if existing, ok := p.entries[owner]; ok && existing >= value {
		return false
	}
	p.entries[owner] = value
	return true
}

// Get returns the owners entry.
func (p *CounterPayload) Get(owner string) uint64 {
	return p.entries[owner]
}

// Value returns the sum of all entries.
func (p *CounterPayload) Value() uint64 {
	var sum uint64
	for _, v := range p.entries {
		sum += v
	}
	return sum
}

// Entries returns a copy of every entry.
func (p *CounterPayload) Entries() map[string]uint64 {
	entries := make(map[string]uint64, len(p.entries))
	for k, v := range p.entries {
		entries[k] = v
	}
	return entries
}
