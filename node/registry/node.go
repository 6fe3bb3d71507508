package registry

import (
	"sort"

	"github.com/andydunstall/glomers/node/state"
	"github.com/andydunstall/glomers/pkg/schedule"
)

// NodeState is the mutable state of a known node.
//
// NodeState must only be accessed inside Registry.WithNode or
// Registry.ViewNode.
type NodeState struct {
	// ID is the nodes identity. It is immutable once registered.
	ID string

	// Members contains every node ID in the cluster, as given on
	// initialisation.
	Members []string

	// Peers contains the IDs of the nodes to gossip with. This starts as
	// every member, then is replaced by the overlay topology once built.
	Peers []string

	// DedupCapacity bounds the broadcast dedup ledger (0 is unbounded).
	DedupCapacity int

	// BroadcastTask is the background broadcast dissemination task, or nil
	// if not yet started.
	BroadcastTask *schedule.Task

	// CounterTask is the background counter dissemination task, or nil if
	// not yet started.
	CounterTask *schedule.Task

	lastMsgID uint64

	broadcast *state.BroadcastPayload
	counter   *state.CounterPayload
	log       *state.LogPayload
	kv        *state.KVPayload
}

func newNodeState(id string, members []string, dedupCapacity int) *NodeState {
	members = append([]string(nil), members...)
	return &NodeState{
		ID:            id,
		Members:       members,
		Peers:         append([]string(nil), members...),
		DedupCapacity: dedupCapacity,
	}
}

// NextMsgID returns a new message ID, strictly greater than any previously
// returned for this node.
func (n *NodeState) NextMsgID() uint64 {
	n.lastMsgID++
	return n.lastMsgID
}

// Broadcast returns the broadcast payload, creating it on first use.
func (n *NodeState) Broadcast() *state.BroadcastPayload {
	if n.broadcast == nil {
		n.broadcast = state.NewBroadcastPayload(n.DedupCapacity)
	}
	return n.broadcast
}

// Counter returns the counter payload, creating it on first use.
func (n *NodeState) Counter() *state.CounterPayload {
	if n.counter == nil {
		n.counter = state.NewCounterPayload()
	}
	return n.counter
}

// Log returns the keyed log payload, creating it on first use.
func (n *NodeState) Log() *state.LogPayload {
	if n.log == nil {
		n.log = state.NewLogPayload()
	}
	return n.log
}

// KV returns the key/value payload, creating it on first use.
func (n *NodeState) KV() *state.KVPayload {
	if n.kv == nil {
		n.kv = state.NewKVPayload()
	}
	return n.kv
}

// RemotePeers returns the peers excluding the node itself.
func (n *NodeState) RemotePeers() []string {
	peers := make([]string, 0, len(n.Peers))
	for _, peer := range n.Peers {
		if peer == n.ID {
			continue
		}
		peers = append(peers, peer)
	}
	return peers
}

// NodeStatus is a point in time copy of a nodes state, used to inspect the
// node.
type NodeStatus struct {
	ID        string   `json:"id" yaml:"id"`
	Members   []string `json:"members" yaml:"members"`
	Peers     []string `json:"peers" yaml:"peers"`
	LastMsgID uint64   `json:"last_msg_id" yaml:"last_msg_id"`

	Broadcast *BroadcastStatus `json:"broadcast,omitempty" yaml:"broadcast,omitempty"`
	Counter   *CounterStatus   `json:"counter,omitempty" yaml:"counter,omitempty"`
	Log       *LogStatus       `json:"log,omitempty" yaml:"log,omitempty"`
	KV        *KVStatus        `json:"kv,omitempty" yaml:"kv,omitempty"`
}

type BroadcastStatus struct {
	Values     int         `json:"values" yaml:"values"`
	Watermark  int         `json:"watermark" yaml:"watermark"`
	LedgerSize int         `json:"ledger_size" yaml:"ledger_size"`
	Task       *TaskStatus `json:"task,omitempty" yaml:"task,omitempty"`
}

type CounterStatus struct {
	Value   uint64            `json:"value" yaml:"value"`
	Entries map[string]uint64 `json:"entries" yaml:"entries"`
	Task    *TaskStatus       `json:"task,omitempty" yaml:"task,omitempty"`
}

type LogStatus struct {
	Entries   int               `json:"entries" yaml:"entries"`
	Latest    map[string]uint64 `json:"latest" yaml:"latest"`
	Committed map[string]uint64 `json:"committed" yaml:"committed"`
}

type KVStatus struct {
	Keys int    `json:"keys" yaml:"keys"`
	Txns uint64 `json:"txns" yaml:"txns"`
}

// TaskStatus describes a running dissemination task.
type TaskStatus struct {
	Name     string `json:"name" yaml:"name"`
	Interval string `json:"interval" yaml:"interval"`
	Ticks    uint64 `json:"ticks" yaml:"ticks"`
}

// Summary describes the registry as a whole.
type Summary struct {
	Nodes         int  `json:"nodes" yaml:"nodes"`
	TopologyBuilt bool `json:"topology_built" yaml:"topology_built"`
	Poisoned      bool `json:"poisoned" yaml:"poisoned"`
}

func (n *NodeState) status() *NodeStatus {
	s := &NodeStatus{
		ID:        n.ID,
		Members:   append([]string(nil), n.Members...),
		Peers:     append([]string(nil), n.Peers...),
		LastMsgID: n.lastMsgID,
	}
	if n.broadcast != nil {
		s.Broadcast = &BroadcastStatus{
			Values:     n.broadcast.Len(),
			Watermark:  n.broadcast.Watermark(),
			LedgerSize: n.broadcast.Ledger().Len(),
		}
		s.Broadcast.Task = taskStatus(n.BroadcastTask)
	}
	if n.counter != nil {
		s.Counter = &CounterStatus{
			Value:   n.counter.Value(),
			Entries: n.counter.Entries(),
		}
		s.Counter.Task = taskStatus(n.CounterTask)
	}
	if n.log != nil {
		s.Log = &LogStatus{
			Entries:   n.log.Len(),
			Latest:    n.log.LatestOffsets(),
			Committed: n.log.CommittedOffsets(),
		}
	}
	if n.kv != nil {
		s.KV = &KVStatus{
			Keys: n.kv.Len(),
			Txns: n.kv.Txns(),
		}
	}
	return s
}

func taskStatus(t *schedule.Task) *TaskStatus {
	if t == nil {
		return nil
	}
	return &TaskStatus{
		Name:     t.Name(),
		Interval: t.Interval().String(),
		Ticks:    t.Ticks(),
	}
}

// sortStatuses sorts statuses by node ID.
func sortStatuses(statuses []*NodeStatus) {
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ID < statuses[j].ID
	})
}
