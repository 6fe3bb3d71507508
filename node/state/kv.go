package state

// KVOp is a read or write of a single key within a transaction.
type KVOp struct {
	Write bool
	Key   int64
	// Value is the value to write, or for a read the value read, which is
	// nil if the key has no value.
	Value *int64
}

// KVPayload is a register per key, updated by transactions.
type KVPayload struct {
	values map[int64]int64
	txns   uint64
}

func NewKVPayload() *KVPayload {
	return &KVPayload{
		values: make(map[int64]int64),
	}
}

// Apply executes the operations of a transaction in order, returning the
// operations with each reads value filled in. Reads observe earlier writes
// in the same transaction.
//
// KVPayload isn't safe for concurrent use, so callers apply each
// transaction under a single lock.
func (p *KVPayload) Apply(ops []KVOp) []KVOp {
	results := make([]KVOp, 0, len(ops))
	for _, op := range ops {
		if op.Write {
			p.values[op.Key] = *op.Value
			v := *op.Value
			results = append(results, KVOp{Write: true, Key: op.Key, Value: &v})
			continue
		}

		result := KVOp{Key: op.Key}
		if v, ok := p.values[op.Key]; ok {
			result.Value = &v
		}
		results = append(results, result)
	}
	p.txns++
	return results
}

// Len returns the number of keys with a value.
func (p *KVPayload) Len() int {
	return len(p.values)
}

// Txns returns the number of applied transactions.
func (p *KVPayload) Txns() uint64 {
	return p.txns
}
