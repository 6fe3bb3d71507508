package state

import (
	"github.com/andydunstall/glomers/pkg/lru"
)

// Origin identifies the dissemination round a gossip message belongs to: the
// node that started the round and the message ID it allocated for it.
type Origin struct {
	Src   string
	MsgID uint64
}

// Ledger records which origins have already been applied.
type Ledger struct {
	seen *lru.Cache[Origin]
}

// NewLedger returns a ledger remembering up to capacity origins, evicting the
// least recently observed once full. A capacity of zero never forgets.
func NewLedger(capacity int) *Ledger {
	return &Ledger{
		seen: lru.New[Origin](capacity),
	}
}

// Observe records the origin, returning true the first time it is seen and
// false on every repeat.
func (l *Ledger) Observe(origin Origin) bool {
	return !l.seen.Touch(origin)
}

// Len returns the number of remembered origins.
func (l *Ledger) Len() int {
	return l.seen.Len()
}
