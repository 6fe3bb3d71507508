// Package kafka implements the log workload.
//
// Each node holds an append-only log per key. Clients append with 'send',
// read from an offset with 'poll', and record and query their consumer
// progress with 'commit_offsets' and 'list_committed_offsets'. Logs are
// local to the node that receives the messages.
package kafka

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/andydunstall/glomers/node/config"
	"github.com/andydunstall/glomers/node/registry"
	"github.com/andydunstall/glomers/pkg/log"
	"github.com/andydunstall/glomers/pkg/protocol"
)

type Kafka struct {
	registry *registry.Registry
	sender   protocol.Sender

	conf config.KafkaConfig

	metrics *Metrics

	logger log.Logger
}

func NewKafka(
	registry *registry.Registry,
	sender protocol.Sender,
	conf config.KafkaConfig,
	logger log.Logger,
) *Kafka {
	return &Kafka{
		registry: registry,
		sender:   sender,
		conf:     conf,
		metrics:  NewMetrics(),
		logger:   logger.WithSubsystem("kafka"),
	}
}

func (k *Kafka) Metrics() *Metrics {
	return k.metrics
}

// HandleSend appends the message to the log for its key and replies with
// the assigned offset.
func (k *Kafka) HandleSend(_ context.Context, f *protocol.Frame) error {
	body, err := protocol.DecodeBody[protocol.SendBody](f)
	if err != nil {
		return err
	}
	if body.Key == "" {
		return fmt.Errorf("send: key: %w", protocol.ErrMissingField)
	}
	if body.Msg == nil {
		return fmt.Errorf("send: msg: %w", protocol.ErrMissingField)
	}

	var reply *protocol.SendOKBody
	var entries int
	if err := k.registry.WithNode(f.Dest, func(n *registry.NodeState) error {
		p := n.Log()
		offset := p.Append(body.Key, *body.Msg)
		entries = p.Len()

		reply = &protocol.SendOKBody{
			Header: protocol.Header{
				Type:      protocol.TypeSendOK,
				MsgID:     n.NextMsgID(),
				InReplyTo: f.MsgID(),
			},
			Offset: offset,
		}
		return nil
	}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	k.metrics.Appended.Inc()
	k.metrics.Entries.WithLabelValues(f.Dest).Set(float64(entries))

	return k.sender.Send(f.Dest, f.Src, reply)
}

// HandlePoll replies with the entries of each requested key from the
// requested offset. Every requested key is in the reply, with no entries if
// the key is unknown.
func (k *Kafka) HandlePoll(_ context.Context, f *protocol.Frame) error {
	body, err := protocol.DecodeBody[protocol.PollBody](f)
	if err != nil {
		return err
	}

	var reply *protocol.PollOKBody
	polled := 0
	if err := k.registry.WithNode(f.Dest, func(n *registry.NodeState) error {
		msgs := make(map[string][][2]uint64, len(body.Offsets))
		for key, from := range body.Offsets {
			entries := n.Log().Poll(key, from, k.conf.PollLimit)
			pairs := make([][2]uint64, 0, len(entries))
			for _, e := range entries {
				pairs = append(pairs, [2]uint64{e.Offset, e.Msg})
			}
			msgs[key] = pairs
			polled += len(pairs)
		}

		reply = &protocol.PollOKBody{
			Header: protocol.Header{
				Type:      protocol.TypePollOK,
				MsgID:     n.NextMsgID(),
				InReplyTo: f.MsgID(),
			},
			Msgs: msgs,
		}
		return nil
	}); err != nil {
		return fmt.Errorf("poll: %w", err)
	}

	k.metrics.Polled.Add(float64(polled))

	return k.sender.Send(f.Dest, f.Src, reply)
}

// HandleCommitOffsets records the committed offset of each key. Committed
// offsets never move backwards, so a stale commit is ignored.
func (k *Kafka) HandleCommitOffsets(_ context.Context, f *protocol.Frame) error {
	body, err := protocol.DecodeBody[protocol.CommitOffsetsBody](f)
	if err != nil {
		return err
	}

	var reply *protocol.Header
	stale := 0
	if err := k.registry.WithNode(f.Dest, func(n *registry.NodeState) error {
		p := n.Log()
		for key, offset := range body.Offsets {
			if !p.Commit(key, offset) {
				stale++
			}
		}

		reply = &protocol.Header{
			Type:      protocol.TypeCommitOffsetsOK,
			MsgID:     n.NextMsgID(),
			InReplyTo: f.MsgID(),
		}
		return nil
	}); err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}

	k.metrics.Commits.Add(float64(len(body.Offsets) - stale))
	if stale > 0 {
		k.metrics.StaleCommits.Add(float64(stale))
		k.logger.Debug(
			"ignored stale commits",
			zap.String("node-id", f.Dest),
			zap.String("src", f.Src),
			zap.Int("stale", stale),
		)
	}

	return k.sender.Send(f.Dest, f.Src, reply)
}

// HandleListCommittedOffsets replies with the committed offset of each
// requested key. Keys with no committed offset are omitted.
func (k *Kafka) HandleListCommittedOffsets(_ context.Context, f *protocol.Frame) error {
	body, err := protocol.DecodeBody[protocol.ListCommittedOffsetsBody](f)
	if err != nil {
		return err
	}

	var reply *protocol.ListCommittedOffsetsOKBody
	if err := k.registry.WithNode(f.Dest, func(n *registry.NodeState) error {
		offsets := make(map[string]uint64, len(body.Keys))
		for _, key := range body.Keys {
			if offset, ok := n.Log().Committed(key); ok {
				offsets[key] = offset
			}
		}

		reply = &protocol.ListCommittedOffsetsOKBody{
			Header: protocol.Header{
				Type:      protocol.TypeListCommittedOffsetsOK,
				MsgID:     n.NextMsgID(),
				InReplyTo: f.MsgID(),
			},
			Offsets: offsets,
		}
		return nil
	}); err != nil {
		return fmt.Errorf("list committed offsets: %w", err)
	}

	return k.sender.Send(f.Dest, f.Src, reply)
}
