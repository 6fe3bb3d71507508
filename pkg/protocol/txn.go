package protocol

import (
	"fmt"
	"math"
)

// Transaction operation kinds.
const (
	OpRead  = "r"
	OpWrite = "w"
)

// Op is a single transaction operation. Value is nil for a read request, or
// for a read of a key with no value.
type Op struct {
	Kind  string
	Key   int64
	Value *int64
}

// ParseTxn decodes the [op, key, value] triples of a transaction.
//
// Returns an error wrapping ErrProtocol if a triple is malformed or has an
// unknown kind, or ErrMissingField if a write has no value.
func ParseTxn(txn [][]interface{}) ([]Op, error) {
	ops := make([]Op, 0, len(txn))
	for i, triple := range txn {
		if len(triple) != 3 {
			return nil, fmt.Errorf("%w: txn: op %d: expected 3 elements", ErrProtocol, i)
		}

		kind, ok := triple[0].(string)
		if !ok || (kind != OpRead && kind != OpWrite) {
			return nil, fmt.Errorf("%w: txn: op %d: unknown op: %v", ErrProtocol, i, triple[0])
		}
		key, ok := toInt64(triple[1])
		if !ok {
			return nil, fmt.Errorf("%w: txn: op %d: invalid key: %v", ErrProtocol, i, triple[1])
		}

		op := Op{Kind: kind, Key: key}
		if triple[2] != nil {
			v, ok := toInt64(triple[2])
			if !ok {
				return nil, fmt.Errorf("%w: txn: op %d: invalid value: %v", ErrProtocol, i, triple[2])
			}
			op.Value = &v
		}
		if kind == OpWrite && op.Value == nil {
			return nil, fmt.Errorf("txn: op %d: value: %w", i, ErrMissingField)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// EncodeTxn encodes ops as [op, key, value] triples.
func EncodeTxn(ops []Op) [][]interface{} {
	txn := make([][]interface{}, 0, len(ops))
	for _, op := range ops {
		var value interface{}
		if op.Value != nil {
			value = *op.Value
		}
		txn = append(txn, []interface{}{op.Kind, op.Key, value})
	}
	return txn
}

// toInt64 converts a decoded JSON number to an int64. Non-integral and out
// of range numbers are rejected.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
