// Package txn implements the transactional key/value workload.
//
// Each node holds an integer register per key. A 'txn' message carries a
// list of reads and writes which the node applies atomically, in order,
// replying with the value of each read. Registers are local to the node
// that receives the transaction.
package txn

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/andydunstall/glomers/node/registry"
	"github.com/andydunstall/glomers/node/state"
	"github.com/andydunstall/glomers/pkg/log"
	"github.com/andydunstall/glomers/pkg/protocol"
)

type Store struct {
	registry *registry.Registry
	sender   protocol.Sender

	metrics *Metrics

	logger log.Logger
}

func NewStore(
	registry *registry.Registry,
	sender protocol.Sender,
	logger log.Logger,
) *Store {
	return &Store{
		registry: registry,
		sender:   sender,
		metrics:  NewMetrics(),
		logger:   logger.WithSubsystem("txn"),
	}
}

func (s *Store) Metrics() *Metrics {
	return s.metrics
}

// HandleTxn applies the transaction and replies with its operations, where
// each read carries the value read.
//
// A malformed transaction is rejected as a whole, so no operation is
// applied.
func (s *Store) HandleTxn(_ context.Context, f *protocol.Frame) error {
	body, err := protocol.DecodeBody[protocol.TxnBody](f)
	if err != nil {
		return err
	}
	if body.Txn == nil {
		return fmt.Errorf("txn: txn: %w", protocol.ErrMissingField)
	}

	ops, err := protocol.ParseTxn(body.Txn)
	if err != nil {
		s.metrics.Rejected.Inc()
		return err
	}

	var reply *protocol.TxnBody
	if err := s.registry.WithNode(f.Dest, func(n *registry.NodeState) error {
		results := n.KV().Apply(toKVOps(ops))

		reply = &protocol.TxnBody{
			Header: protocol.Header{
				Type:      protocol.TypeTxnOK,
				MsgID:     n.NextMsgID(),
				InReplyTo: f.MsgID(),
			},
			Txn: protocol.EncodeTxn(fromKVOps(results)),
		}
		return nil
	}); err != nil {
		return fmt.Errorf("txn: %w", err)
	}

	s.metrics.Applied.Inc()
	for _, op := range ops {
		s.metrics.Ops.WithLabelValues(op.Kind).Inc()
	}

	s.logger.Debug(
		"applied transaction",
		zap.String("node-id", f.Dest),
		zap.String("src", f.Src),
		zap.Int("ops", len(ops)),
	)

	return s.sender.Send(f.Dest, f.Src, reply)
}

func toKVOps(ops []protocol.Op) []state.KVOp {
	kvOps := make([]state.KVOp, 0, len(ops))
	for _, op := range ops {
		kvOps = append(kvOps, state.KVOp{
			Write: op.Kind == protocol.OpWrite,
			Key:   op.Key,
			Value: op.Value,
		})
	}
	return kvOps
}

func fromKVOps(kvOps []state.KVOp) []protocol.Op {
	ops := make([]protocol.Op, 0, len(kvOps))
	for _, kvOp := range kvOps {
		kind := protocol.OpRead
		if kvOp.Write {
			kind = protocol.OpWrite
		}
		ops = append(ops, protocol.Op{
			Kind:  kind,
			Key:   kvOp.Key,
			Value: kvOp.Value,
		})
	}
	return ops
}
