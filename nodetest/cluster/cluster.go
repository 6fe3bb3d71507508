// Package cluster runs an in-process cluster of nodes for testing.
//
// Each node runs its own node.Server, as it would in its own process, but
// rather than reading stdin and writing stdout the nodes exchange messages
// over an in-memory network. Messages addressed to anything other than a
// node are delivered to the Client with that ID.
package cluster

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andydunstall/glomers/node"
	"github.com/andydunstall/glomers/node/config"
	"github.com/andydunstall/glomers/pkg/log"
	"github.com/andydunstall/glomers/pkg/protocol"
)

type Cluster struct {
	ids       []string
	servers   map[string]*node.Server
	mailboxes map[string]*mailbox

	clients map[string]*Client

	// mu protects clients.
	mu sync.Mutex

	group  *errgroup.Group
	cancel context.CancelFunc

	options options

	logger log.Logger
}

// New creates a cluster of n nodes with IDs n1 to n{n}. The nodes aren't
// started until Start is called.
func New(n int, opts ...Option) *Cluster {
	options := options{
		conf:   config.Default(),
		logger: log.NewNopLogger(),
	}
	for _, o := range opts {
		o.apply(&options)
	}

	c := &Cluster{
		servers:   make(map[string]*node.Server),
		mailboxes: make(map[string]*mailbox),
		clients:   make(map[string]*Client),
		options:   options,
		logger:    options.logger.WithSubsystem("cluster.network"),
	}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("n%d", i)
		c.ids = append(c.ids, id)
		c.mailboxes[id] = newMailbox()
		c.servers[id] = node.NewServer(
			options.conf, &sender{cluster: c}, options.logger.With(zap.String("node-id", id)),
		)
	}
	return c
}

// Start runs every node and initialises them with the cluster membership.
// Returns once every node has acknowledged initialisation.
func (c *Cluster) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.group = &errgroup.Group{}
	for _, id := range c.ids {
		server := c.servers[id]
		mailbox := c.mailboxes[id]
		c.group.Go(func() error {
			return server.Run(runCtx, mailbox)
		})
	}

	client := c.Client("c0")
	for _, id := range c.ids {
		if err := client.Init(ctx, id, c.ids); err != nil {
			return fmt.Errorf("init %s: %w", id, err)
		}
	}
	return nil
}

// Close stops every node. Returns an error if any node failed.
func (c *Cluster) Close() error {
	for _, mailbox := range c.mailboxes {
		mailbox.Close()
	}

	var err error
	if c.group != nil {
		err = c.group.Wait()
	}
	if c.cancel != nil {
		c.cancel()
	}
	return err
}

// IDs returns the node IDs.
func (c *Cluster) IDs() []string {
	return append([]string(nil), c.ids...)
}

// Server returns the server for the node with the given ID, or nil if
// there is no such node.
func (c *Cluster) Server(id string) *node.Server {
	return c.servers[id]
}

// Client returns the client with the given ID, creating it if it doesn't
// exist. Client IDs must not conflict with node IDs.
func (c *Cluster) Client(id string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, ok := c.clients[id]
	if !ok {
		client = newClient(id, c)
		c.clients[id] = client
	}
	return client
}

// Clients returns the IDs of every created client.
func (c *Cluster) Clients() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.clients))
	for id := range c.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Cluster) deliver(src, dest string, body interface{}) error {
	b, err := protocol.Encode(&protocol.Message[interface{}]{
		Src:  src,
		Dest: dest,
		Body: body,
	})
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	f, err := protocol.ParseFrame(b)
	if err != nil {
		return err
	}

	mailbox, ok := c.mailboxes[dest]
	if !ok {
		c.Client(dest).deliver(f)
		return nil
	}

	_, fromNode := c.mailboxes[src]
	if fromNode && c.options.filter != nil && !c.options.filter(f) {
		c.logger.Debug(
			"dropped message",
			zap.String("src", src),
			zap.String("dest", dest),
			zap.String("type", f.Type()),
		)
		return nil
	}

	push := mailbox.Push
	if fromNode && c.options.reorder {
		push = mailbox.Shuffle
	}

	push(f)
	if fromNode && c.options.duplicate {
		push(f)
	}
	return nil
}

// sender sends messages from a node to the network.
type sender struct {
	cluster *Cluster
}

func (s *sender) Send(src, dest string, body interface{}) error {
	return s.cluster.deliver(src, dest, body)
}

var _ protocol.Sender = &sender{}
