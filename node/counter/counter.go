// Package counter implements the grow-only counter workload.
//
// Each node owns one entry in the counter, which only it increments. The
// counter value is the sum of all entries. Nodes periodically send their own
// entry to their peers, who keep the greatest value seen per owner.
package counter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/andydunstall/glomers/node/config"
	"github.com/andydunstall/glomers/node/registry"
	"github.com/andydunstall/glomers/pkg/log"
	"github.com/andydunstall/glomers/pkg/protocol"
	"github.com/andydunstall/glomers/pkg/schedule"
)

type Counter struct {
	registry *registry.Registry
	sender   protocol.Sender

	conf config.GossipConfig

	metrics *Metrics

	logger log.Logger
}

func NewCounter(
	registry *registry.Registry,
	sender protocol.Sender,
	conf config.GossipConfig,
	logger log.Logger,
) *Counter {
	return &Counter{
		registry: registry,
		sender:   sender,
		conf:     conf,
		metrics:  NewMetrics(),
		logger:   logger.WithSubsystem("counter"),
	}
}

func (c *Counter) Metrics() *Metrics {
	return c.metrics
}

// HandleAdd increments the nodes own entry by delta.
func (c *Counter) HandleAdd(ctx context.Context, f *protocol.Frame) error {
	body, err := protocol.DecodeBody[protocol.AddBody](f)
	if err != nil {
		return err
	}
	if body.Delta == nil {
		return fmt.Errorf("add: delta: %w", protocol.ErrMissingField)
	}

	var reply *protocol.Header
	var value uint64
	if err := c.registry.WithNode(f.Dest, func(n *registry.NodeState) error {
		p := n.Counter()
		p.Add(n.ID, *body.Delta)
		value = p.Value()
		c.ensureTask(ctx, n)

		reply = &protocol.Header{
			Type:      protocol.TypeAddOK,
			MsgID:     n.NextMsgID(),
			InReplyTo: f.MsgID(),
		}
		return nil
	}); err != nil {
		return fmt.Errorf("add: %w", err)
	}

	c.metrics.Value.WithLabelValues(f.Dest).Set(float64(value))

	return c.sender.Send(f.Dest, f.Src, reply)
}

// HandleRead replies with the sum of every known entry.
func (c *Counter) HandleRead(_ context.Context, f *protocol.Frame) error {
	var reply *protocol.CounterReadBody
	if err := c.registry.WithNode(f.Dest, func(n *registry.NodeState) error {
		reply = &protocol.CounterReadBody{
			Header: protocol.Header{
				Type:      protocol.TypeReadOK,
				MsgID:     n.NextMsgID(),
				InReplyTo: f.MsgID(),
			},
			Value: n.Counter().Value(),
		}
		return nil
	}); err != nil {
		return fmt.Errorf("read: %w", err)
	}

	return c.sender.Send(f.Dest, f.Src, reply)
}

// HandleGossip merges the senders entry. Gossip is not acknowledged.
func (c *Counter) HandleGossip(ctx context.Context, f *protocol.Frame) error {
	body, err := protocol.DecodeBody[protocol.CounterGossipBody](f)
	if err != nil {
		return err
	}
	if body.Value == nil {
		return fmt.Errorf("gossip: value: %w", protocol.ErrMissingField)
	}

	c.metrics.GossipInbound.Inc()

	var updated bool
	var value uint64
	if err := c.registry.WithNode(f.Dest, func(n *registry.NodeState) error {
		p := n.Counter()
		updated = p.Merge(f.Src, *body.Value)
		value = p.Value()
		c.ensureTask(ctx, n)
		return nil
	}); err != nil {
		return fmt.Errorf("gossip: %w", err)
	}

	if !updated {
		c.metrics.StaleEntries.Inc()
		return nil
	}
	c.metrics.Value.WithLabelValues(f.Dest).Set(float64(value))
	return nil
}

// ensureTask starts the nodes counter gossip task if it isn't already
// running. Must be called with the registry lock held.
func (c *Counter) ensureTask(ctx context.Context, n *registry.NodeState) {
	if n.CounterTask != nil {
		return
	}

	nodeID := n.ID
	n.CounterTask = schedule.Start(
		ctx, "counter-gossip", c.conf.CounterInterval, func() {
			c.Tick(nodeID)
		},
	)

	c.logger.Debug(
		"started counter gossip task",
		zap.String("node-id", nodeID),
		zap.Duration("interval", c.conf.CounterInterval),
	)
}

// Tick sends the nodes own entry to each of its peers. Returns the number
// of messages sent.
func (c *Counter) Tick(nodeID string) int {
	type target struct {
		peer  string
		msgID uint64
	}

	var value uint64
	var targets []target
	if err := c.registry.WithNode(nodeID, func(n *registry.NodeState) error {
		value = n.Counter().Get(n.ID)
		for _, peer := range n.RemotePeers() {
			targets = append(targets, target{
				peer:  peer,
				msgID: n.NextMsgID(),
			})
		}
		return nil
	}); err != nil {
		c.logger.Warn(
			"counter gossip tick failed; retrying next interval",
			zap.String("node-id", nodeID),
			zap.Error(err),
		)
		return 0
	}

	sent := 0
	for _, t := range targets {
		v := value
		if err := c.sender.Send(nodeID, t.peer, &protocol.CounterGossipBody{
			Header: protocol.Header{
				Type:  protocol.TypeGossip,
				MsgID: t.msgID,
			},
			Value: &v,
		}); err != nil {
			c.metrics.SendErrors.Inc()
			c.logger.Warn(
				"failed to send counter gossip",
				zap.String("node-id", nodeID),
				zap.String("peer", t.peer),
				zap.Error(err),
			)
			continue
		}
		c.metrics.GossipOutbound.Inc()
		sent++
	}
	return sent
}
