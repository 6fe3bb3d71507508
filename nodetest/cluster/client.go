package cluster

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/andydunstall/glomers/pkg/protocol"
)

// Client sends requests to nodes and waits for their replies.
type Client struct {
	id string

	cluster *Cluster

	lastMsgID *atomic.Uint64

	// pending contains channels waiting for a reply, keyed by the request
	// message ID.
	pending map[uint64]chan *protocol.Frame

	// mu protects pending.
	mu sync.Mutex
}

func newClient(id string, cluster *Cluster) *Client {
	return &Client{
		id:        id,
		cluster:   cluster,
		lastMsgID: atomic.NewUint64(0),
		pending:   make(map[uint64]chan *protocol.Frame),
	}
}

// Request sends body to the node dest and waits for the reply. The message
// ID is assigned by the client.
func (c *Client) Request(
	ctx context.Context,
	dest string,
	body map[string]interface{},
) (*protocol.Frame, error) {
	msgID := c.lastMsgID.Inc()

	req := make(map[string]interface{}, len(body)+1)
	for k, v := range body {
		req[k] = v
	}
	req["msg_id"] = msgID

	ch := make(chan *protocol.Frame, 1)
	c.mu.Lock()
	c.pending[msgID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, msgID)
		c.mu.Unlock()
	}()

	if err := c.cluster.deliver(c.id, dest, req); err != nil {
		return nil, err
	}

	select {
	case f := <-ch:
		return f, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", body["type"], ctx.Err())
	}
}

func (c *Client) Init(ctx context.Context, dest string, members []string) error {
	_, err := c.request(ctx, dest, protocol.TypeInitOK, map[string]interface{}{
		"type":     protocol.TypeInit,
		"node_id":  dest,
		"node_ids": members,
	})
	return err
}

func (c *Client) Echo(ctx context.Context, dest string, echo string) (string, error) {
	f, err := c.request(ctx, dest, protocol.TypeEchoOK, map[string]interface{}{
		"type": protocol.TypeEcho,
		"echo": echo,
	})
	if err != nil {
		return "", err
	}
	body, err := protocol.DecodeBody[protocol.EchoBody](f)
	if err != nil {
		return "", err
	}
	s, _ := body.Echo.(string)
	return s, nil
}

func (c *Client) Generate(ctx context.Context, dest string) (string, error) {
	f, err := c.request(ctx, dest, protocol.TypeGenerateOK, map[string]interface{}{
		"type": protocol.TypeGenerate,
	})
	if err != nil {
		return "", err
	}
	body, err := protocol.DecodeBody[protocol.GenerateBody](f)
	if err != nil {
		return "", err
	}
	return body.ID, nil
}

func (c *Client) Topology(ctx context.Context, dest string) error {
	_, err := c.request(ctx, dest, protocol.TypeTopologyOK, map[string]interface{}{
		"type":     protocol.TypeTopology,
		"topology": map[string][]string{},
	})
	return err
}

func (c *Client) Broadcast(ctx context.Context, dest string, message uint64) error {
	_, err := c.request(ctx, dest, protocol.TypeBroadcastOK, map[string]interface{}{
		"type":    protocol.TypeBroadcast,
		"message": message,
	})
	return err
}

// Read returns the broadcast value set of dest.
func (c *Client) Read(ctx context.Context, dest string) ([]uint64, error) {
	f, err := c.request(ctx, dest, protocol.TypeReadOK, map[string]interface{}{
		"type": protocol.TypeRead,
	})
	if err != nil {
		return nil, err
	}
	body, err := protocol.DecodeBody[protocol.BroadcastReadBody](f)
	if err != nil {
		return nil, err
	}
	return body.Messages, nil
}

func (c *Client) Add(ctx context.Context, dest string, delta uint64) error {
	_, err := c.request(ctx, dest, protocol.TypeAddOK, map[string]interface{}{
		"type":  protocol.TypeAdd,
		"delta": delta,
	})
	return err
}

// ReadCounter returns the counter value of dest.
func (c *Client) ReadCounter(ctx context.Context, dest string) (uint64, error) {
	f, err := c.request(ctx, dest, protocol.TypeReadOK, map[string]interface{}{
		"type": protocol.TypeRead,
	})
	if err != nil {
		return 0, err
	}
	body, err := protocol.DecodeBody[protocol.CounterReadBody](f)
	if err != nil {
		return 0, err
	}
	return body.Value, nil
}

// Send appends msg to the log for key on dest, returning its offset.
func (c *Client) Send(ctx context.Context, dest string, key string, msg uint64) (uint64, error) {
	f, err := c.request(ctx, dest, protocol.TypeSendOK, map[string]interface{}{
		"type": protocol.TypeSend,
		"key":  key,
		"msg":  msg,
	})
	if err != nil {
		return 0, err
	}
	body, err := protocol.DecodeBody[protocol.SendOKBody](f)
	if err != nil {
		return 0, err
	}
	return body.Offset, nil
}

// Poll returns the [offset, msg] entries of each key from the given offsets.
func (c *Client) Poll(
	ctx context.Context,
	dest string,
	offsets map[string]uint64,
) (map[string][][2]uint64, error) {
	f, err := c.request(ctx, dest, protocol.TypePollOK, map[string]interface{}{
		"type":    protocol.TypePoll,
		"offsets": offsets,
	})
	if err != nil {
		return nil, err
	}
	body, err := protocol.DecodeBody[protocol.PollOKBody](f)
	if err != nil {
		return nil, err
	}
	return body.Msgs, nil
}

func (c *Client) CommitOffsets(ctx context.Context, dest string, offsets map[string]uint64) error {
	_, err := c.request(ctx, dest, protocol.TypeCommitOffsetsOK, map[string]interface{}{
		"type":    protocol.TypeCommitOffsets,
		"offsets": offsets,
	})
	return err
}

func (c *Client) ListCommittedOffsets(
	ctx context.Context,
	dest string,
	keys []string,
) (map[string]uint64, error) {
	f, err := c.request(ctx, dest, protocol.TypeListCommittedOffsetsOK, map[string]interface{}{
		"type": protocol.TypeListCommittedOffsets,
		"keys": keys,
	})
	if err != nil {
		return nil, err
	}
	body, err := protocol.DecodeBody[protocol.ListCommittedOffsetsOKBody](f)
	if err != nil {
		return nil, err
	}
	return body.Offsets, nil
}

// Txn applies the operations on dest and returns the results.
func (c *Client) Txn(ctx context.Context, dest string, ops []protocol.Op) ([]protocol.Op, error) {
	f, err := c.request(ctx, dest, protocol.TypeTxnOK, map[string]interface{}{
		"type": protocol.TypeTxn,
		"txn":  protocol.EncodeTxn(ops),
	})
	if err != nil {
		return nil, err
	}
	body, err := protocol.DecodeBody[protocol.TxnBody](f)
	if err != nil {
		return nil, err
	}
	return protocol.ParseTxn(body.Txn)
}

// request sends the request and checks the reply has type replyType.
func (c *Client) request(
	ctx context.Context,
	dest string,
	replyType string,
	body map[string]interface{},
) (*protocol.Frame, error) {
	f, err := c.Request(ctx, dest, body)
	if err != nil {
		return nil, err
	}
	if f.Type() != replyType {
		return nil, fmt.Errorf("unexpected reply: %s", f.Type())
	}
	return f, nil
}

func (c *Client) deliver(f *protocol.Frame) {
	c.mu.Lock()
	ch, ok := c.pending[f.Header.InReplyTo]
	c.mu.Unlock()

	if !ok {
		return
	}

	select {
	case ch <- f:
	default:
	}
}
