package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func value(v int64) *int64 {
	return &v
}

func TestKVPayload_Apply(t *testing.T) {
	t.Run("read your writes", func(t *testing.T) {
		p := NewKVPayload()

		results := p.Apply([]KVOp{
			{Key: 1},
			{Write: true, Key: 1, Value: value(5)},
			{Key: 1},
			{Write: true, Key: 1, Value: value(6)},
			{Key: 1},
		})
		assert.Equal(t, []KVOp{
			{Key: 1},
			{Write: true, Key: 1, Value: value(5)},
			{Key: 1, Value: value(5)},
			{Write: true, Key: 1, Value: value(6)},
			{Key: 1, Value: value(6)},
		}, results)
	})

	t.Run("later transactions", func(t *testing.T) {
		p := NewKVPayload()
		p.Apply([]KVOp{{Write: true, Key: 2, Value: value(-3)}})

		results := p.Apply([]KVOp{{Key: 2}, {Key: 3}})
		assert.Equal(t, []KVOp{{Key: 2, Value: value(-3)}, {Key: 3}}, results)

		assert.Equal(t, 1, p.Len())
		assert.Equal(t, uint64(2), p.Txns())
	})

	t.Run("results are copies", func(t *testing.T) {
		p := NewKVPayload()
		write := value(1)
		results := p.Apply([]KVOp{{Write: true, Key: 1, Value: write}})

		*write = 9
		*results[0].Value = 9

		results = p.Apply([]KVOp{{Key: 1}})
		assert.Equal(t, int64(1), *results[0].Value)
	})

	t.Run("empty", func(t *testing.T) {
		p := NewKVPayload()
		assert.Empty(t, p.Apply(nil))
	})
}
