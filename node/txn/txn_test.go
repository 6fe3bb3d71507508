package txn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andydunstall/glomers/node/registry"
	"github.com/andydunstall/glomers/nodetest"
	"github.com/andydunstall/glomers/pkg/log"
	"github.com/andydunstall/glomers/pkg/protocol"
)

func setupStore(t *testing.T) (*Store, *registry.Registry, *nodetest.Sender) {
	reg := registry.NewRegistry(log.NewNopLogger())
	require.NoError(t, reg.Register("n1", []string{"n1"}, 0))

	sender := nodetest.NewSender()
	return NewStore(reg, sender, log.NewNopLogger()), reg, sender
}

func TestStore_Txn(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		s, reg, sender := setupStore(t)

		require.NoError(t, s.HandleTxn(context.Background(), nodetest.Frame(
			t, "c1", "n1",
			`{"type":"txn","msg_id":3,"txn":[["r",1,null],["w",1,6],["r",1,null],["r",2,null]]}`,
		)))

		sent := sender.Take()
		require.Len(t, sent, 1)
		assert.Equal(t, "c1", sent[0].Dest)

		// Encode the reply to compare the wire format.
		b, err := protocol.Encode(sent[0].Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"type": "txn_ok",
			"msg_id": 1,
			"in_reply_to": 3,
			"txn": [["r",1,null],["w",1,6],["r",1,6],["r",2,null]]
		}`, string(b))

		// Later transactions observe the write.
		require.NoError(t, s.HandleTxn(context.Background(), nodetest.Frame(
			t, "c1", "n1", `{"type":"txn","msg_id":4,"txn":[["r",1,null]]}`,
		)))
		b, err = protocol.Encode(sender.Take()[0].Body)
		require.NoError(t, err)
		assert.Contains(t, string(b), `"txn":[["r",1,6]]`)

		n, _ := reg.Node("n1")
		require.NotNil(t, n.KV)
		assert.Equal(t, &registry.KVStatus{Keys: 1, Txns: 2}, n.KV)

		assert.Equal(t, 2.0, nodetest.CounterValue(t, s.Metrics().Applied))
		assert.Equal(t, 1.0, nodetest.CounterValue(t, s.Metrics().Ops.WithLabelValues("w")))
		assert.Equal(t, 4.0, nodetest.CounterValue(t, s.Metrics().Ops.WithLabelValues("r")))
	})

	t.Run("malformed transaction is not applied", func(t *testing.T) {
		s, reg, sender := setupStore(t)

		err := s.HandleTxn(context.Background(), nodetest.Frame(
			t, "c1", "n1", `{"type":"txn","msg_id":1,"txn":[["w",1,6],["cas",1,7]]}`,
		))
		assert.ErrorIs(t, err, protocol.ErrProtocol)
		assert.Empty(t, sender.Sent())
		assert.Equal(t, 1.0, nodetest.CounterValue(t, s.Metrics().Rejected))

		n, _ := reg.Node("n1")
		assert.Nil(t, n.KV)
	})

	t.Run("write without value", func(t *testing.T) {
		s, _, sender := setupStore(t)

		err := s.HandleTxn(context.Background(), nodetest.Frame(
			t, "c1", "n1", `{"type":"txn","msg_id":1,"txn":[["w",1,null]]}`,
		))
		assert.ErrorIs(t, err, protocol.ErrMissingField)
		assert.Empty(t, sender.Sent())
	})

	t.Run("missing txn", func(t *testing.T) {
		s, _, _ := setupStore(t)

		err := s.HandleTxn(context.Background(), nodetest.Frame(
			t, "c1", "n1", `{"type":"txn","msg_id":1}`,
		))
		assert.ErrorIs(t, err, protocol.ErrMissingField)
	})
}
