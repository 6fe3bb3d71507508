package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/andydunstall/glomers/pkg/log"
	"github.com/andydunstall/glomers/pkg/protocol"
)

// Workload selects which semantics 'read' and 'gossip' messages have.
type Workload string

const (
	WorkloadBroadcast Workload = "broadcast"
	WorkloadGCounter  Workload = "g-counter"
	WorkloadKafka     Workload = "kafka"
	WorkloadTxn       Workload = "txn-rw-register"
)

type NodeConfig struct {
	// Workload is the workload the node serves.
	Workload Workload `json:"workload" yaml:"workload"`

	// MaxRecordSize is the largest input record accepted in bytes. Larger
	// records are skipped.
	MaxRecordSize int `json:"max_record_size" yaml:"max_record_size"`
}

func (c *NodeConfig) Validate() error {
	if c.MaxRecordSize <= 0 {
		return fmt.Errorf("missing max record size")
	}

	switch c.Workload {
	case WorkloadBroadcast, WorkloadGCounter, WorkloadKafka, WorkloadTxn:
		return nil
	case "":
		return fmt.Errorf("missing workload")
	default:
		return fmt.Errorf("unsupported workload: %s", c.Workload)
	}
}

type GossipConfig struct {
	// BroadcastInterval is the rate the broadcast value set is disseminated
	// to peers.
	BroadcastInterval time.Duration `json:"broadcast_interval" yaml:"broadcast_interval"`

	// CounterInterval is the rate the nodes counter entry is sent to peers.
	CounterInterval time.Duration `json:"counter_interval" yaml:"counter_interval"`

	// ResyncInterval is the rate the broadcast value set is disseminated
	// even when unchanged. Zero disables resync.
	ResyncInterval time.Duration `json:"resync_interval" yaml:"resync_interval"`

	// DedupCapacity is the maximum number of gossip origins remembered.
	// Zero is unbounded.
	DedupCapacity int `json:"dedup_capacity" yaml:"dedup_capacity"`
}

func (c *GossipConfig) Validate() error {
	if c.BroadcastInterval <= 0 {
		return fmt.Errorf("missing broadcast interval")
	}
	if c.CounterInterval <= 0 {
		return fmt.Errorf("missing counter interval")
	}
	if c.ResyncInterval < 0 {
		return fmt.Errorf("negative resync interval")
	}
	if c.DedupCapacity < 0 {
		return fmt.Errorf("negative dedup capacity")
	}
	return nil
}

type KafkaConfig struct {
	// PollLimit is the maximum number of entries returned per key by a
	// poll. Zero is unbounded.
	PollLimit int `json:"poll_limit" yaml:"poll_limit"`
}

func (c *KafkaConfig) Validate() error {
	if c.PollLimit < 0 {
		return fmt.Errorf("negative poll limit")
	}
	return nil
}

type AdminConfig struct {
	// BindAddr is the address to bind to listen for incoming HTTP
	// connections. If empty the admin server is disabled.
	BindAddr string `json:"bind_addr" yaml:"bind_addr"`
}

func (c *AdminConfig) Enabled() bool {
	return c.BindAddr != ""
}

type Config struct {
	Node   NodeConfig   `json:"node" yaml:"node"`
	Gossip GossipConfig `json:"gossip" yaml:"gossip"`
	Kafka  KafkaConfig  `json:"kafka" yaml:"kafka"`
	Admin  AdminConfig  `json:"admin" yaml:"admin"`
	Log    log.Config   `json:"log" yaml:"log"`
}

// Default returns the config with every flag default applied.
func Default() *Config {
	conf := &Config{}
	conf.RegisterFlags(pflag.NewFlagSet("default", pflag.ContinueOnError))
	return conf
}

func (c *Config) Validate() error {
	if err := c.Node.Validate(); err != nil {
		return fmt.Errorf("node: %w", err)
	}
	if err := c.Gossip.Validate(); err != nil {
		return fmt.Errorf("gossip: %w", err)
	}
	if err := c.Kafka.Validate(); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(
		(*string)(&c.Node.Workload),
		"node.workload",
		string(WorkloadBroadcast),
		`
The workload the node serves. One of 'broadcast', 'g-counter', 'kafka' or
'txn-rw-register'.

This selects which message types the node accepts. For 'broadcast' and
'g-counter' it also selects whether 'read' returns the broadcast value set
or the counter value, and whether 'gossip' carries a value set or a counter
entry.`,
	)
	fs.IntVar(
		&c.Node.MaxRecordSize,
		"node.max-record-size",
		protocol.DefaultMaxRecordSize,
		`
The maximum size of an input record in bytes.

A larger record is discarded as malformed and the node continues with the
next record.`,
	)

	fs.DurationVar(
		&c.Gossip.BroadcastInterval,
		"gossip.broadcast-interval",
		50*time.Millisecond,
		`
The interval to disseminate the broadcast value set to peers.

Rounds where the value set hasn't changed since the last round are skipped.`,
	)
	fs.DurationVar(
		&c.Gossip.CounterInterval,
		"gossip.counter-interval",
		100*time.Millisecond,
		`
The interval to send the nodes counter entry to each peer.`,
	)
	fs.DurationVar(
		&c.Gossip.ResyncInterval,
		"gossip.resync-interval",
		0,
		`
The interval to disseminate the broadcast value set even if unchanged.

Without resync, a gossip round that is dropped is only repaired when the
value set next changes. Set to '0' to disable.`,
	)
	fs.IntVar(
		&c.Gossip.DedupCapacity,
		"gossip.dedup-capacity",
		0,
		`
The maximum number of gossip origins remembered to drop repeated gossip.

Once full, the least recently seen origin is forgotten. A forgotten origin
may cause one redundant round of gossip but never incorrect state. Set to
'0' to remember every origin.`,
	)

	fs.IntVar(
		&c.Kafka.PollLimit,
		"kafka.poll-limit",
		0,
		`
The maximum number of entries returned for each key in a 'poll'.

Consumers poll again from the next offset to read the remaining entries.
Set to '0' to return every entry.`,
	)

	fs.StringVar(
		&c.Admin.BindAddr,
		"admin.bind-addr",
		"",
		`
The host/port to listen for incoming admin connections, which expose
metrics and node status.

If empty the admin server is disabled.`,
	)

	c.Log.RegisterFlags(fs)
}
