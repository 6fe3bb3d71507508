package cluster

import (
	"github.com/andydunstall/glomers/node/config"
	"github.com/andydunstall/glomers/pkg/log"
	"github.com/andydunstall/glomers/pkg/protocol"
)

// Filter returns whether a message between nodes should be delivered.
type Filter func(f *protocol.Frame) bool

type options struct {
	conf      *config.Config
	duplicate bool
	reorder   bool
	filter    Filter
	logger    log.Logger
}

type configOption struct {
	Config *config.Config
}

func (o configOption) apply(opts *options) {
	opts.conf = o.Config
}

// WithConfig configures the node config, shared by every node. Defaults to
// config.Default.
func WithConfig(conf *config.Config) Option {
	return configOption{Config: conf}
}

type duplicateOption bool

func (o duplicateOption) apply(opts *options) {
	opts.duplicate = bool(o)
}

// WithDuplicate configures the network to deliver every message between
// nodes twice.
func WithDuplicate(duplicate bool) Option {
	return duplicateOption(duplicate)
}

type reorderOption bool

func (o reorderOption) apply(opts *options) {
	opts.reorder = bool(o)
}

// WithReorder configures the network to deliver messages between nodes out
// of order. Each message is queued at a random position in the receivers
// mailbox.
func WithReorder(reorder bool) Option {
	return reorderOption(reorder)
}

type filterOption struct {
	Filter Filter
}

func (o filterOption) apply(opts *options) {
	opts.filter = o.Filter
}

// WithFilter configures the network to drop messages between nodes that
// the filter rejects. Messages to and from clients are always delivered.
func WithFilter(filter Filter) Option {
	return filterOption{Filter: filter}
}

type loggerOption struct {
	Logger log.Logger
}

func (o loggerOption) apply(opts *options) {
	opts.logger = o.Logger
}

// WithLogger configures the logger. Defaults to no output.
func WithLogger(logger log.Logger) Option {
	return loggerOption{Logger: logger}
}

type Option interface {
	apply(*options)
}
