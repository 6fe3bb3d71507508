package node

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andydunstall/glomers/node/registry"
	"github.com/andydunstall/glomers/pkg/protocol"
)

// handleInit registers the local node.
func (s *Server) handleInit(_ context.Context, f *protocol.Frame) error {
	body, err := protocol.DecodeBody[protocol.InitBody](f)
	if err != nil {
		return err
	}
	if body.NodeID == "" {
		return fmt.Errorf("init: node_id: %w", protocol.ErrMissingField)
	}

	members := body.NodeIDs
	if len(members) == 0 {
		members = []string{body.NodeID}
	}
	if err := s.registry.Register(
		body.NodeID, members, s.conf.Gossip.DedupCapacity,
	); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	s.logger.Info(
		"node initialised",
		zap.String("node-id", body.NodeID),
		zap.Int("members", len(members)),
	)

	return s.reply(body.NodeID, f, func(h protocol.Header) interface{} {
		h.Type = protocol.TypeInitOK
		return &h
	})
}

// handleEcho replies with the echo field unchanged.
func (s *Server) handleEcho(_ context.Context, f *protocol.Frame) error {
	body, err := protocol.DecodeBody[protocol.EchoBody](f)
	if err != nil {
		return err
	}

	return s.reply(f.Dest, f, func(h protocol.Header) interface{} {
		h.Type = protocol.TypeEchoOK
		return &protocol.EchoBody{
			Header: h,
			Echo:   body.Echo,
		}
	})
}

// handleGenerate replies with a globally unique ID.
func (s *Server) handleGenerate(_ context.Context, f *protocol.Frame) error {
	id := uuid.New().String()
	return s.reply(f.Dest, f, func(h protocol.Header) interface{} {
		h.Type = protocol.TypeGenerateOK
		return &protocol.GenerateBody{
			Header: h,
			ID:     id,
		}
	})
}

// reply sends the body built by build to the sender of f. build is passed a
// header correlated with f.
func (s *Server) reply(
	nodeID string,
	f *protocol.Frame,
	build func(h protocol.Header) interface{},
) error {
	var msgID uint64
	if err := s.registry.WithNode(nodeID, func(n *registry.NodeState) error {
		msgID = n.NextMsgID()
		return nil
	}); err != nil {
		return fmt.Errorf("%s: %w", f.Type(), err)
	}

	return s.sender.Send(nodeID, f.Src, build(protocol.Header{
		MsgID:     msgID,
		InReplyTo: f.MsgID(),
	}))
}
