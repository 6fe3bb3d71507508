package protocol

// Message types.
const (
	TypeInit        = "init"
	TypeInitOK      = "init_ok"
	TypeEcho        = "echo"
	TypeEchoOK      = "echo_ok"
	TypeGenerate    = "generate"
	TypeGenerateOK  = "generate_ok"
	TypeBroadcast   = "broadcast"
	TypeBroadcastOK = "broadcast_ok"
	TypeRead        = "read"
	TypeReadOK      = "read_ok"
	TypeTopology    = "topology"
	TypeTopologyOK  = "topology_ok"
	TypeGossip      = "gossip"
	TypeGossipOK    = "gossip_ok"
	TypeAdd         = "add"
	TypeAddOK       = "add_ok"

	TypeSend                   = "send"
	TypeSendOK                 = "send_ok"
	TypePoll                   = "poll"
	TypePollOK                 = "poll_ok"
	TypeCommitOffsets          = "commit_offsets"
	TypeCommitOffsetsOK        = "commit_offsets_ok"
	TypeListCommittedOffsets   = "list_committed_offsets"
	TypeListCommittedOffsetsOK = "list_committed_offsets_ok"

	TypeTxn   = "txn"
	TypeTxnOK = "txn_ok"
)

// Message is the envelope of every record on the wire.
type Message[B any] struct {
	Src  string `codec:"src"`
	Dest string `codec:"dest"`
	Body B      `codec:"body"`
}

// Header contains the fields common to every message body.
type Header struct {
	Type      string `codec:"type"`
	MsgID     uint64 `codec:"msg_id,omitempty"`
	InReplyTo uint64 `codec:"in_reply_to,omitempty"`
}

type InitBody struct {
	Header
	NodeID  string   `codec:"node_id,omitempty"`
	NodeIDs []string `codec:"node_ids,omitempty"`
}

type EchoBody struct {
	Header
	Echo interface{} `codec:"echo"`
}

type GenerateBody struct {
	Header
	ID string `codec:"id,omitempty"`
}

type BroadcastBody struct {
	Header
	Message *uint64 `codec:"message,omitempty"`
}

// BroadcastReadBody is the reply to a read in the broadcast workload.
type BroadcastReadBody struct {
	Header
	Messages []uint64 `codec:"messages"`
}

type TopologyBody struct {
	Header
	Topology map[string][]string `codec:"topology,omitempty"`
}

// GossipBody carries a nodes full value set. OrgMsgID and OrgMsgSrc identify
// the dissemination round the message belongs to, which receivers use to
// drop repeats.
type GossipBody struct {
	Header
	GossipData []uint64 `codec:"gossip_data"`
	OrgMsgID   uint64   `codec:"org_msg_id"`
	OrgMsgSrc  string   `codec:"org_msg_src"`
}

type AddBody struct {
	Header
	Delta *uint64 `codec:"delta,omitempty"`
}

// CounterReadBody is the reply to a read in the g-counter workload.
type CounterReadBody struct {
	Header
	Value uint64 `codec:"value"`
}

// CounterGossipBody carries the senders own counter entry.
type CounterGossipBody struct {
	Header
	Value *uint64 `codec:"value,omitempty"`
}

// SendBody appends Msg to the log for Key.
type SendBody struct {
	Header
	Key string  `codec:"key,omitempty"`
	Msg *uint64 `codec:"msg,omitempty"`
}

type SendOKBody struct {
	Header
	Offset uint64 `codec:"offset"`
}

// PollBody requests the entries of each key from the given offset.
type PollBody struct {
	Header
	Offsets map[string]uint64 `codec:"offsets,omitempty"`
}

// PollOKBody carries the polled entries of each key as [offset, msg] pairs.
type PollOKBody struct {
	Header
	Msgs map[string][][2]uint64 `codec:"msgs"`
}

type CommitOffsetsBody struct {
	Header
	Offsets map[string]uint64 `codec:"offsets,omitempty"`
}

type ListCommittedOffsetsBody struct {
	Header
	Keys []string `codec:"keys,omitempty"`
}

type ListCommittedOffsetsOKBody struct {
	Header
	Offsets map[string]uint64 `codec:"offsets"`
}

// TxnBody carries a transaction as a list of [op, key, value] triples. The
// value of a read request is null.
type TxnBody struct {
	Header
	Txn [][]interface{} `codec:"txn"`
}
