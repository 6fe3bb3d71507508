package broadcast

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/andydunstall/glomers/node/registry"
	"github.com/andydunstall/glomers/node/state"
	"github.com/andydunstall/glomers/pkg/protocol"
	"github.com/andydunstall/glomers/pkg/schedule"
)

type target struct {
	peer  string
	msgID uint64
}

// round is a batch of gossip messages, one per peer, all carrying the same
// value set and origin. It is prepared while holding the registry lock and
// sent after the lock is released.
type round struct {
	src     string
	origin  state.Origin
	values  []uint64
	targets []target
}

// prepareRound builds a round to every remote peer of n, except those in
// exclude.
func prepareRound(n *registry.NodeState, origin state.Origin, exclude ...string) *round {
	r := &round{
		src:    n.ID,
		origin: origin,
		values: n.Broadcast().SnapshotValues(),
	}
	for _, peer := range n.RemotePeers() {
		if contains(exclude, peer) {
			continue
		}
		r.targets = append(r.targets, target{
			peer:  peer,
			msgID: n.NextMsgID(),
		})
	}
	return r
}

// ensureTask starts the nodes dissemination task if it isn't already
// running. Must be called with the registry lock held.
func (b *Broadcaster) ensureTask(ctx context.Context, n *registry.NodeState) {
	if n.BroadcastTask != nil {
		return
	}

	nodeID := n.ID
	var lastRound time.Time
	n.BroadcastTask = schedule.Start(
		ctx, "broadcast-gossip", b.conf.BroadcastInterval, func() {
			resync := b.conf.ResyncInterval > 0 &&
				time.Since(lastRound) >= b.conf.ResyncInterval
			if b.Tick(nodeID, resync) {
				lastRound = time.Now()
			}
		},
	)

	b.logger.Debug(
		"started dissemination task",
		zap.String("node-id", nodeID),
		zap.Duration("interval", b.conf.BroadcastInterval),
	)
}

// Tick runs a single dissemination cycle for the node.
//
// If the value set hasn't grown since the last cycle the tick is skipped,
// unless resync is set. Otherwise the full value set is sent to every peer
// under a new origin. Returns whether a round was sent.
func (b *Broadcaster) Tick(nodeID string, resync bool) bool {
	var r *round
	err := b.registry.WithNode(nodeID, func(n *registry.NodeState) error {
		p := n.Broadcast()
		if !p.Pending() && !resync {
			return nil
		}

		p.MarkDisseminated()

		origin := state.Origin{Src: n.ID, MsgID: n.NextMsgID()}
		// Observe our own origin so it isn't forwarded back to peers.
		p.Observe(origin)
		r = prepareRound(n, origin)
		return nil
	})
	if err != nil {
		b.gossipLogger.Warn(
			"dissemination tick failed; retrying next interval",
			zap.String("node-id", nodeID),
			zap.Error(err),
		)
		return false
	}
	if r == nil {
		b.metrics.RoundsSkipped.Inc()
		return false
	}

	if resync {
		b.metrics.RoundsSent.WithLabelValues("resync").Inc()
	} else {
		b.metrics.RoundsSent.WithLabelValues("tick").Inc()
	}
	b.send(r)
	return true
}

func (b *Broadcaster) send(r *round) {
	b.metrics.Values.WithLabelValues(r.src).Set(float64(len(r.values)))

	for _, t := range r.targets {
		err := b.sender.Send(r.src, t.peer, &protocol.GossipBody{
			Header: protocol.Header{
				Type:  protocol.TypeGossip,
				MsgID: t.msgID,
			},
			GossipData: r.values,
			OrgMsgID:   r.origin.MsgID,
			OrgMsgSrc:  r.origin.Src,
		})
		if err != nil {
			b.metrics.SendErrors.Inc()
			b.gossipLogger.Warn(
				"failed to send gossip",
				zap.String("node-id", r.src),
				zap.String("peer", t.peer),
				zap.Error(err),
			)
			continue
		}
		b.metrics.GossipOutbound.Inc()
	}

	if len(r.targets) > 0 {
		b.gossipLogger.Debug(
			"sent gossip round",
			zap.String("node-id", r.src),
			zap.String("org-msg-src", r.origin.Src),
			zap.Uint64("org-msg-id", r.origin.MsgID),
			zap.Int("values", len(r.values)),
			zap.Int("peers", len(r.targets)),
		)
	}
}

func contains(ids []string, id string) bool {
	for _, s := range ids {
		if s == id {
			return true
		}
	}
	return false
}
