package broadcast

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andydunstall/glomers/node/config"
	"github.com/andydunstall/glomers/node/registry"
	"github.com/andydunstall/glomers/nodetest"
	"github.com/andydunstall/glomers/pkg/log"
	"github.com/andydunstall/glomers/pkg/protocol"
)

func testConfig() config.GossipConfig {
	return config.GossipConfig{
		// Ticks are driven manually.
		BroadcastInterval: time.Hour,
		CounterInterval:   time.Hour,
	}
}

func setupBroadcaster(t *testing.T) (*Broadcaster, *registry.Registry, *nodetest.Sender) {
	reg := registry.NewRegistry(log.NewNopLogger())
	require.NoError(t, reg.Register("n1", []string{"n1", "n2", "n3"}, 0))

	sender := nodetest.NewSender()
	b := NewBroadcaster(reg, sender, testConfig(), log.NewNopLogger())
	return b, reg, sender
}

func values(t *testing.T, reg *registry.Registry, id string) []uint64 {
	var v []uint64
	require.NoError(t, reg.ViewNode(id, func(n *registry.NodeState) error {
		v = n.Broadcast().SnapshotValues()
		return nil
	}))
	return v
}

func TestBroadcaster_Broadcast(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b, reg, sender := setupBroadcaster(t)

		require.NoError(t, b.HandleBroadcast(ctx, nodetest.Frame(
			t, "c1", "n1", `{"type":"broadcast","msg_id":4,"message":42}`,
		)))
		assert.Equal(t, []uint64{42}, values(t, reg, "n1"))

		sent := sender.Take()
		require.Len(t, sent, 1)
		assert.Equal(t, "n1", sent[0].Src)
		assert.Equal(t, "c1", sent[0].Dest)
		assert.Equal(t, &protocol.Header{
			Type:      protocol.TypeBroadcastOK,
			MsgID:     1,
			InReplyTo: 4,
		}, sent[0].Body)

		// Broadcasting starts the dissemination task.
		n, ok := reg.Node("n1")
		require.True(t, ok)
		require.NotNil(t, n.Broadcast)
	})

	t.Run("repeated value", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b, reg, sender := setupBroadcaster(t)

		for i := 0; i != 3; i++ {
			require.NoError(t, b.HandleBroadcast(ctx, nodetest.Frame(
				t, "c1", "n1", `{"type":"broadcast","msg_id":1,"message":7}`,
			)))
		}
		assert.Equal(t, []uint64{7}, values(t, reg, "n1"))
		// Every request is acknowledged.
		assert.Len(t, sender.Sent(), 3)
	})

	t.Run("missing message", func(t *testing.T) {
		b, reg, sender := setupBroadcaster(t)

		err := b.HandleBroadcast(context.Background(), nodetest.Frame(
			t, "c1", "n1", `{"type":"broadcast","msg_id":1}`,
		))
		assert.ErrorIs(t, err, protocol.ErrMissingField)
		assert.Empty(t, sender.Sent())
		assert.Empty(t, values(t, reg, "n1"))
	})

	t.Run("unknown node", func(t *testing.T) {
		b, _, sender := setupBroadcaster(t)

		err := b.HandleBroadcast(context.Background(), nodetest.Frame(
			t, "c1", "n9", `{"type":"broadcast","msg_id":1,"message":42}`,
		))
		assert.ErrorIs(t, err, registry.ErrUnknownNode)
		assert.Empty(t, sender.Sent())
	})
}

func TestBroadcaster_Read(t *testing.T) {
	t.Run("sorted", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b, _, sender := setupBroadcaster(t)

		for _, v := range []string{"9", "3", "5"} {
			require.NoError(t, b.HandleBroadcast(ctx, nodetest.Frame(
				t, "c1", "n1", `{"type":"broadcast","msg_id":1,"message":`+v+`}`,
			)))
		}
		sender.Take()

		require.NoError(t, b.HandleRead(ctx, nodetest.Frame(
			t, "c1", "n1", `{"type":"read","msg_id":8}`,
		)))

		sent := sender.Take()
		require.Len(t, sent, 1)
		assert.Equal(t, &protocol.BroadcastReadBody{
			Header: protocol.Header{
				Type:      protocol.TypeReadOK,
				MsgID:     4,
				InReplyTo: 8,
			},
			Messages: []uint64{3, 5, 9},
		}, sent[0].Body)
	})

	t.Run("empty", func(t *testing.T) {
		b, _, sender := setupBroadcaster(t)

		require.NoError(t, b.HandleRead(context.Background(), nodetest.Frame(
			t, "c1", "n1", `{"type":"read","msg_id":1}`,
		)))

		sent := sender.Take()
		require.Len(t, sent, 1)
		body := sent[0].Body.(*protocol.BroadcastReadBody)
		assert.NotNil(t, body.Messages)
		assert.Empty(t, body.Messages)
	})
}

func TestBroadcaster_Topology(t *testing.T) {
	reg := registry.NewRegistry(log.NewNopLogger())
	members := []string{"n1", "n2", "n3", "n4"}
	require.NoError(t, reg.Register("n1", members, 0))

	sender := nodetest.NewSender()
	b := NewBroadcaster(reg, sender, testConfig(), log.NewNopLogger())

	require.NoError(t, b.HandleTopology(context.Background(), nodetest.Frame(
		t, "c1", "n1", `{"type":"topology","msg_id":2,"topology":{"n1":["n4"]}}`,
	)))
	assert.True(t, reg.Summary().TopologyBuilt)

	// The given topology is ignored in favour of the built overlay.
	n, _ := reg.Node("n1")
	assert.Equal(t, []string{"n2", "n4"}, n.Peers)

	sent := sender.Take()
	require.Len(t, sent, 1)
	assert.Equal(t, &protocol.Header{
		Type:      protocol.TypeTopologyOK,
		MsgID:     1,
		InReplyTo: 2,
	}, sent[0].Body)

	// Later topology messages are acknowledged but don't rebuild.
	require.NoError(t, b.HandleTopology(context.Background(), nodetest.Frame(
		t, "c1", "n1", `{"type":"topology","msg_id":3}`,
	)))
	n, _ = reg.Node("n1")
	assert.Equal(t, []string{"n2", "n4"}, n.Peers)
	assert.Len(t, sender.Take(), 1)
}

func TestBroadcaster_Gossip(t *testing.T) {
	t.Run("new origin", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b, reg, sender := setupBroadcaster(t)
		require.NoError(t, reg.WithNode("n1", func(n *registry.NodeState) error {
			n.Broadcast().Add(3)
			return nil
		}))

		require.NoError(t, b.HandleGossip(ctx, nodetest.Frame(
			t, "n2", "n1",
			`{"type":"gossip","msg_id":11,"gossip_data":[2,1],"org_msg_id":7,"org_msg_src":"n2"}`,
		)))
		assert.Equal(t, []uint64{1, 2, 3}, values(t, reg, "n1"))

		sent := sender.Take()
		require.Len(t, sent, 2)

		// Acknowledge with our own value set.
		assert.Equal(t, "n2", sent[0].Dest)
		reply := sent[0].Body.(*protocol.GossipBody)
		assert.Equal(t, protocol.TypeGossipOK, reply.Type)
		assert.Equal(t, uint64(11), reply.InReplyTo)
		assert.Equal(t, []uint64{1, 2, 3}, reply.GossipData)
		assert.Equal(t, uint64(7), reply.OrgMsgID)
		assert.Equal(t, "n2", reply.OrgMsgSrc)

		// Forward to every peer except the sender, under the same origin.
		assert.Equal(t, "n3", sent[1].Dest)
		forward := sent[1].Body.(*protocol.GossipBody)
		assert.Equal(t, protocol.TypeGossip, forward.Type)
		assert.Equal(t, uint64(0), forward.InReplyTo)
		assert.Equal(t, []uint64{1, 2, 3}, forward.GossipData)
		assert.Equal(t, uint64(7), forward.OrgMsgID)
		assert.Equal(t, "n2", forward.OrgMsgSrc)
		assert.NotEqual(t, reply.MsgID, forward.MsgID)
	})

	t.Run("seen origin", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b, reg, sender := setupBroadcaster(t)

		require.NoError(t, b.HandleGossip(ctx, nodetest.Frame(
			t, "n2", "n1",
			`{"type":"gossip","msg_id":1,"gossip_data":[1],"org_msg_id":7,"org_msg_src":"n2"}`,
		)))
		sender.Take()

		// The same origin arriving via another peer carries new data.
		require.NoError(t, b.HandleGossip(ctx, nodetest.Frame(
			t, "n3", "n1",
			`{"type":"gossip","msg_id":1,"gossip_data":[1,5],"org_msg_id":7,"org_msg_src":"n2"}`,
		)))

		// The data is merged, but not acknowledged or forwarded.
		assert.Equal(t, []uint64{1, 5}, values(t, reg, "n1"))
		assert.Empty(t, sender.Sent())
	})

	t.Run("reply fails", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b, reg, sender := setupBroadcaster(t)
		sender.SetTypeError(protocol.TypeGossipOK, assert.AnError)

		err := b.HandleGossip(ctx, nodetest.Frame(
			t, "n2", "n1",
			`{"type":"gossip","msg_id":11,"gossip_data":[2],"org_msg_id":7,"org_msg_src":"n2"}`,
		))
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, []uint64{2}, values(t, reg, "n1"))
		assert.Equal(t, 1.0, nodetest.CounterValue(t, b.Metrics().SendErrors))

		// The round is still forwarded to the other peers.
		sent := sender.Take()
		require.Len(t, sent, 1)
		assert.Equal(t, "n3", sent[0].Dest)
		forward := sent[0].Body.(*protocol.GossipBody)
		assert.Equal(t, protocol.TypeGossip, forward.Type)
		assert.Equal(t, []uint64{2}, forward.GossipData)
		assert.Equal(t, "n2", forward.OrgMsgSrc)

		// The origin is observed so a retry isn't forwarded again.
		require.NoError(t, b.HandleGossip(ctx, nodetest.Frame(
			t, "n3", "n1",
			`{"type":"gossip","msg_id":2,"gossip_data":[2],"org_msg_id":7,"org_msg_src":"n2"}`,
		)))
		assert.Empty(t, sender.Sent())
	})

	t.Run("missing origin", func(t *testing.T) {
		b, _, sender := setupBroadcaster(t)

		err := b.HandleGossip(context.Background(), nodetest.Frame(
			t, "n2", "n1", `{"type":"gossip","msg_id":1,"gossip_data":[1]}`,
		))
		assert.ErrorIs(t, err, protocol.ErrMissingField)
		assert.Empty(t, sender.Sent())
	})

	t.Run("gossip ok", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b, reg, sender := setupBroadcaster(t)

		require.NoError(t, b.HandleGossipOK(ctx, nodetest.Frame(
			t, "n2", "n1",
			`{"type":"gossip_ok","msg_id":3,"in_reply_to":1,"gossip_data":[4,8],"org_msg_id":1,"org_msg_src":"n1"}`,
		)))
		assert.Equal(t, []uint64{4, 8}, values(t, reg, "n1"))
		assert.Empty(t, sender.Sent())
	})
}

func TestBroadcaster_Tick(t *testing.T) {
	t.Run("pending", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b, _, sender := setupBroadcaster(t)

		require.NoError(t, b.HandleBroadcast(ctx, nodetest.Frame(
			t, "c1", "n1", `{"type":"broadcast","msg_id":1,"message":42}`,
		)))
		sender.Take()

		assert.True(t, b.Tick("n1", false))

		sent := sender.Take()
		require.Len(t, sent, 2)
		assert.Equal(t, "n2", sent[0].Dest)
		assert.Equal(t, "n3", sent[1].Dest)

		first := sent[0].Body.(*protocol.GossipBody)
		second := sent[1].Body.(*protocol.GossipBody)
		assert.Equal(t, []uint64{42}, first.GossipData)
		assert.Equal(t, "n1", first.OrgMsgSrc)
		// Every message in the round shares the origin.
		assert.Equal(t, first.OrgMsgID, second.OrgMsgID)
		assert.Equal(t, first.OrgMsgSrc, second.OrgMsgSrc)
		assert.NotEqual(t, first.MsgID, second.MsgID)

		// Our own round echoed back is dropped.
		require.NoError(t, b.HandleGossip(ctx, nodetest.Frame(
			t, "n2", "n1",
			`{"type":"gossip","msg_id":1,"gossip_data":[42],"org_msg_id":`+
				strconv.FormatUint(first.OrgMsgID, 10)+`,"org_msg_src":"n1"}`,
		)))
		assert.Empty(t, sender.Sent())
	})

	t.Run("unchanged", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b, _, sender := setupBroadcaster(t)

		require.NoError(t, b.HandleBroadcast(ctx, nodetest.Frame(
			t, "c1", "n1", `{"type":"broadcast","msg_id":1,"message":42}`,
		)))
		assert.True(t, b.Tick("n1", false))
		sender.Take()

		assert.False(t, b.Tick("n1", false))
		assert.Empty(t, sender.Sent())

		// Resync disseminates even when unchanged.
		assert.True(t, b.Tick("n1", true))
		assert.Len(t, sender.Take(), 2)
	})

	t.Run("after topology", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b, _, sender := setupBroadcaster(t)

		require.NoError(t, b.HandleTopology(ctx, nodetest.Frame(
			t, "c1", "n1", `{"type":"topology","msg_id":1}`,
		)))
		require.NoError(t, b.HandleBroadcast(ctx, nodetest.Frame(
			t, "c1", "n1", `{"type":"broadcast","msg_id":2,"message":42}`,
		)))
		sender.Take()

		// The 3 node overlay is a chain, so n1 only gossips with n2.
		assert.True(t, b.Tick("n1", false))
		sent := sender.Take()
		require.Len(t, sent, 1)
		assert.Equal(t, "n2", sent[0].Dest)
	})

	t.Run("send error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b, _, sender := setupBroadcaster(t)

		require.NoError(t, b.HandleBroadcast(ctx, nodetest.Frame(
			t, "c1", "n1", `{"type":"broadcast","msg_id":1,"message":42}`,
		)))
		sender.SetError(assert.AnError)

		// The round is still counted as sent.
		assert.True(t, b.Tick("n1", false))
		assert.False(t, b.Tick("n1", false))
	})

	t.Run("unknown node", func(t *testing.T) {
		b, _, sender := setupBroadcaster(t)

		assert.False(t, b.Tick("n9", true))
		assert.Empty(t, sender.Sent())
	})
}

func TestBroadcaster_TaskDisseminates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := registry.NewRegistry(log.NewNopLogger())
	require.NoError(t, reg.Register("n1", []string{"n1", "n2"}, 0))

	sender := nodetest.NewSender()
	conf := testConfig()
	conf.BroadcastInterval = 5 * time.Millisecond
	b := NewBroadcaster(reg, sender, conf, log.NewNopLogger())

	require.NoError(t, b.HandleBroadcast(ctx, nodetest.Frame(
		t, "c1", "n1", `{"type":"broadcast","msg_id":1,"message":42}`,
	)))

	assert.Eventually(t, func() bool {
		for _, s := range sender.Sent() {
			if body, ok := s.Body.(*protocol.GossipBody); ok {
				return s.Dest == "n2" && body.Type == protocol.TypeGossip
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}
