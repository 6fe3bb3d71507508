package cluster

import (
	"io"
	"math/rand"
	"sync"

	"github.com/andydunstall/glomers/pkg/protocol"
)

// mailbox is an unbounded queue of frames addressed to a node. It
// implements protocol.Source, so a node reads from its mailbox as it would
// from stdin.
//
// The queue is unbounded so two nodes sending to each other from their
// handlers can never block one another.
type mailbox struct {
	frames []*protocol.Frame
	closed bool

	// mu protects the above fields.
	mu sync.Mutex

	// notifyCh is signalled when a frame is queued or the mailbox closed.
	notifyCh chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		notifyCh: make(chan struct{}, 1),
	}
}

func (m *mailbox) Next() (*protocol.Frame, error) {
	for {
		m.mu.Lock()
		if len(m.frames) > 0 {
			f := m.frames[0]
			m.frames[0] = nil
			m.frames = m.frames[1:]
			m.mu.Unlock()
			return f, nil
		}
		if m.closed {
			m.mu.Unlock()
			return nil, io.EOF
		}
		m.mu.Unlock()

		<-m.notifyCh
	}
}

// Push queues the frame. Frames pushed after Close are discarded.
func (m *mailbox) Push(f *protocol.Frame) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.frames = append(m.frames, f)
	m.mu.Unlock()

	m.notify()
}

// Shuffle queues the frame at a random position among the queued frames, so
// it may be read before frames pushed earlier. Frames pushed after Close are
// discarded.
func (m *mailbox) Shuffle(f *protocol.Frame) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	i := rand.Intn(len(m.frames) + 1)
	m.frames = append(m.frames, nil)
	copy(m.frames[i+1:], m.frames[i:])
	m.frames[i] = f
	m.mu.Unlock()

	m.notify()
}

// Close causes Next to return io.EOF once the queued frames are read.
func (m *mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.notify()
}

func (m *mailbox) notify() {
	select {
	case m.notifyCh <- struct{}{}:
	default:
	}
}

var _ protocol.Source = &mailbox{}
