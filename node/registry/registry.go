package registry

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/andydunstall/glomers/pkg/log"
)

// Registry is the table of known nodes and their mutable state.
//
// All access is serialised by a single reader/writer lock. The lock is only
// held while fn runs, so callers must copy out anything they need to send
// and perform I/O after the call returns.
type Registry struct {
	nodes map[string]*NodeState

	// topologyBuilt latches once the overlay topology has been assigned.
	topologyBuilt bool

	// mu protects the above fields.
	mu sync.RWMutex

	// poisoned is set if fn panicked while holding the lock.
	poisoned *atomic.Bool

	metrics *Metrics

	logger log.Logger
}

func NewRegistry(logger log.Logger) *Registry {
	return &Registry{
		nodes:    make(map[string]*NodeState),
		poisoned: atomic.NewBool(false),
		metrics:  NewMetrics(),
		logger:   logger.WithSubsystem("registry"),
	}
}

// Register adds a node with the given cluster members. Fails with
// ErrNodeExists if the ID is already registered.
func (r *Registry) Register(id string, members []string, dedupCapacity int) error {
	return r.update(func() error {
		if _, ok := r.nodes[id]; ok {
			return fmt.Errorf("register: %s: %w", id, ErrNodeExists)
		}
		r.nodes[id] = newNodeState(id, members, dedupCapacity)
		r.metrics.Nodes.Set(float64(len(r.nodes)))

		r.logger.Info(
			"registered node",
			zap.String("node-id", id),
			zap.Strings("members", members),
		)
		return nil
	})
}

// WithNode runs fn with exclusive access to the node with the given ID.
//
// Returns ErrUnknownNode if the node is not registered, or the error
// returned by fn.
func (r *Registry) WithNode(id string, fn func(n *NodeState) error) error {
	return r.update(func() error {
		node, ok := r.nodes[id]
		if !ok {
			return fmt.Errorf("%s: %w", id, ErrUnknownNode)
		}
		return fn(node)
	})
}

// ViewNode runs fn with shared access to the node with the given ID. fn
// must not mutate the node, including lazily creating payloads.
func (r *Registry) ViewNode(id string, fn func(n *NodeState) error) error {
	return r.view(func() error {
		node, ok := r.nodes[id]
		if !ok {
			return fmt.Errorf("%s: %w", id, ErrUnknownNode)
		}
		return fn(node)
	})
}

// AssignTopology assigns the overlay topology returned by build to every
// registered node, replacing their peer lists. build is only run the first
// time, later calls return false without rebuilding.
func (r *Registry) AssignTopology(build func() map[string][]string) (bool, error) {
	var assigned bool
	err := r.update(func() error {
		if r.topologyBuilt {
			return nil
		}

		graph := build()
		for id, node := range r.nodes {
			peers, ok := graph[id]
			if !ok {
				r.logger.Warn(
					"node missing from topology",
					zap.String("node-id", id),
				)
				continue
			}
			node.Peers = append([]string(nil), peers...)
		}
		r.topologyBuilt = true
		assigned = true
		return nil
	})
	return assigned, err
}

// Summary returns a point in time summary of the registry. It is available
// even once the registry lock is poisoned.
func (r *Registry) Summary() *Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return &Summary{
		Nodes:         len(r.nodes),
		TopologyBuilt: r.topologyBuilt,
		Poisoned:      r.poisoned.Load(),
	}
}

// Node returns a copy of the state of the node with the given ID, or false
// if the node is unknown.
func (r *Registry) Node(id string) (*NodeStatus, bool) {
	var status *NodeStatus
	if err := r.ViewNode(id, func(n *NodeState) error {
		status = n.status()
		return nil
	}); err != nil {
		return nil, false
	}
	return status, true
}

// Nodes returns a copy of the state of every registered node, sorted by ID.
func (r *Registry) Nodes() []*NodeStatus {
	var statuses []*NodeStatus
	_ = r.view(func() error {
		for _, node := range r.nodes {
			statuses = append(statuses, node.status())
		}
		return nil
	})
	sortStatuses(statuses)
	return statuses
}

func (r *Registry) Metrics() *Metrics {
	return r.metrics
}

func (r *Registry) update(fn func() error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.poisoned.Load() {
		return ErrLockUnavailable
	}

	defer r.recoverLocked(&err)

	return fn()
}

func (r *Registry) view(fn func() error) (err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.poisoned.Load() {
		return ErrLockUnavailable
	}

	defer r.recoverLocked(&err)

	return fn()
}

// recoverLocked poisons the registry if the caller panicked while holding the
// lock.
func (r *Registry) recoverLocked(err *error) {
	v := recover()
	if v == nil {
		return
	}

	r.poisoned.Store(true)
	r.metrics.Poisoned.Set(1)
	r.logger.Error("panic holding registry lock", zap.Any("panic", v))

	*err = fmt.Errorf("%w: panic: %v", ErrLockUnavailable, v)
}
