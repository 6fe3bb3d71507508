// Package broadcast implements the broadcast workload.
//
// Each node holds a grow-only set of values. Clients add values with
// 'broadcast' and read the set with 'read'. Nodes converge by periodically
// sending their full value set to their peers in the overlay topology; each
// round is tagged with an origin so receivers forward it at most once.
package broadcast

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/andydunstall/glomers/node/config"
	"github.com/andydunstall/glomers/node/registry"
	"github.com/andydunstall/glomers/node/state"
	"github.com/andydunstall/glomers/node/topology"
	"github.com/andydunstall/glomers/pkg/log"
	"github.com/andydunstall/glomers/pkg/protocol"
)

// Broadcaster handles broadcast workload messages and runs each nodes
// dissemination task.
type Broadcaster struct {
	registry *registry.Registry
	sender   protocol.Sender

	conf config.GossipConfig

	metrics *Metrics

	logger       log.Logger
	gossipLogger log.Logger
}

func NewBroadcaster(
	registry *registry.Registry,
	sender protocol.Sender,
	conf config.GossipConfig,
	logger log.Logger,
) *Broadcaster {
	return &Broadcaster{
		registry:     registry,
		sender:       sender,
		conf:         conf,
		metrics:      NewMetrics(),
		logger:       logger.WithSubsystem("broadcast"),
		gossipLogger: logger.WithSubsystem("broadcast.gossip"),
	}
}

func (b *Broadcaster) Metrics() *Metrics {
	return b.metrics
}

// HandleBroadcast adds the message value to the nodes value set.
func (b *Broadcaster) HandleBroadcast(ctx context.Context, f *protocol.Frame) error {
	body, err := protocol.DecodeBody[protocol.BroadcastBody](f)
	if err != nil {
		return err
	}
	if body.Message == nil {
		return fmt.Errorf("broadcast: message: %w", protocol.ErrMissingField)
	}

	var reply *protocol.Header
	if err := b.registry.WithNode(f.Dest, func(n *registry.NodeState) error {
		n.Broadcast().Add(*body.Message)
		b.ensureTask(ctx, n)

		reply = &protocol.Header{
			Type:      protocol.TypeBroadcastOK,
			MsgID:     n.NextMsgID(),
			InReplyTo: f.MsgID(),
		}
		return nil
	}); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}

	return b.sender.Send(f.Dest, f.Src, reply)
}

// HandleRead replies with the nodes value set.
func (b *Broadcaster) HandleRead(_ context.Context, f *protocol.Frame) error {
	var reply *protocol.BroadcastReadBody
	if err := b.registry.WithNode(f.Dest, func(n *registry.NodeState) error {
		reply = &protocol.BroadcastReadBody{
			Header: protocol.Header{
				Type:      protocol.TypeReadOK,
				MsgID:     n.NextMsgID(),
				InReplyTo: f.MsgID(),
			},
			Messages: n.Broadcast().SnapshotValues(),
		}
		return nil
	}); err != nil {
		return fmt.Errorf("read: %w", err)
	}

	return b.sender.Send(f.Dest, f.Src, reply)
}

// HandleTopology builds the overlay topology from the cluster members, the
// first time it is called, and replaces each nodes peers with its
// neighbours. The topology in the message is ignored.
func (b *Broadcaster) HandleTopology(_ context.Context, f *protocol.Frame) error {
	var members []string
	if err := b.registry.ViewNode(f.Dest, func(n *registry.NodeState) error {
		members = append(members, n.Members...)
		return nil
	}); err != nil {
		return fmt.Errorf("topology: %w", err)
	}

	var graph topology.Graph
	assigned, err := b.registry.AssignTopology(func() map[string][]string {
		graph = topology.Build(members)
		return graph
	})
	if err != nil {
		return fmt.Errorf("topology: %w", err)
	}
	if assigned {
		b.logger.Info(
			"built topology",
			zap.Int("nodes", len(graph)),
			zap.Int("edges", graph.Edges()),
			zap.Strings("neighbours", graph.Neighbours(f.Dest)),
		)
	}

	var reply *protocol.Header
	if err := b.registry.WithNode(f.Dest, func(n *registry.NodeState) error {
		reply = &protocol.Header{
			Type:      protocol.TypeTopologyOK,
			MsgID:     n.NextMsgID(),
			InReplyTo: f.MsgID(),
		}
		return nil
	}); err != nil {
		return fmt.Errorf("topology: %w", err)
	}

	return b.sender.Send(f.Dest, f.Src, reply)
}

// HandleGossip merges a peers value set.
//
// The first time an origin is seen, the node acknowledges with its own value
// set and forwards the round to its other peers under the same origin.
// Repeats of a seen origin are merged but neither acknowledged nor
// forwarded.
func (b *Broadcaster) HandleGossip(ctx context.Context, f *protocol.Frame) error {
	body, err := protocol.DecodeBody[protocol.GossipBody](f)
	if err != nil {
		return err
	}
	if body.OrgMsgSrc == "" {
		return fmt.Errorf("gossip: org_msg_src: %w", protocol.ErrMissingField)
	}

	b.metrics.GossipInbound.WithLabelValues(protocol.TypeGossip).Inc()

	origin := state.Origin{Src: body.OrgMsgSrc, MsgID: body.OrgMsgID}

	var reply *protocol.GossipBody
	var forward *round
	if err := b.registry.WithNode(f.Dest, func(n *registry.NodeState) error {
		p := n.Broadcast()
		b.ensureTask(ctx, n)

		p.MergeValues(body.GossipData)

		if !p.Observe(origin) {
			return nil
		}

		forward = prepareRound(n, origin, f.Src)
		if len(forward.targets) > 0 {
			// Forwarding sends the full value set to every other peer.
			p.MarkDisseminated()
		}

		reply = &protocol.GossipBody{
			Header: protocol.Header{
				Type:      protocol.TypeGossipOK,
				MsgID:     n.NextMsgID(),
				InReplyTo: f.MsgID(),
			},
			GossipData: forward.values,
			OrgMsgID:   origin.MsgID,
			OrgMsgSrc:  origin.Src,
		}
		return nil
	}); err != nil {
		return fmt.Errorf("gossip: %w", err)
	}

	if reply == nil {
		b.metrics.DuplicatesDropped.Inc()
		b.gossipLogger.Debug(
			"dropped gossip; origin already seen",
			zap.String("node-id", f.Dest),
			zap.String("src", f.Src),
			zap.String("org-msg-src", origin.Src),
			zap.Uint64("org-msg-id", origin.MsgID),
		)
		return nil
	}

	// The origin is already observed and the value set marked disseminated,
	// so the forward round is sent even if the reply fails.
	replyErr := b.sender.Send(f.Dest, f.Src, reply)
	if replyErr != nil {
		b.metrics.SendErrors.Inc()
	}

	if len(forward.targets) > 0 {
		b.metrics.RoundsSent.WithLabelValues("forward").Inc()
		b.send(forward)
	}

	if replyErr != nil {
		return fmt.Errorf("gossip: reply: %w", replyErr)
	}
	return nil
}

// HandleGossipOK merges the value set a peer acknowledged gossip with.
func (b *Broadcaster) HandleGossipOK(ctx context.Context, f *protocol.Frame) error {
	body, err := protocol.DecodeBody[protocol.GossipBody](f)
	if err != nil {
		return err
	}

	b.metrics.GossipInbound.WithLabelValues(protocol.TypeGossipOK).Inc()

	if err := b.registry.WithNode(f.Dest, func(n *registry.NodeState) error {
		n.Broadcast().MergeValues(body.GossipData)
		b.ensureTask(ctx, n)
		return nil
	}); err != nil {
		return fmt.Errorf("gossip ok: %w", err)
	}
	return nil
}
