// Package nodetest contains utilities for testing node handlers.
package nodetest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andydunstall/glomers/pkg/protocol"
)

// Sent is a message passed to Sender.Send.
type Sent struct {
	Src  string
	Dest string
	Body interface{}
}

// Sender is a protocol.Sender that records sent messages.
type Sender struct {
	sent []Sent

	// err is returned by Send if set.
	err error
	// typeErrs fails sends of the given body types.
	typeErrs map[string]error

	mu sync.Mutex
}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(src, dest string, body interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	if err, ok := s.typeErrs[bodyType(body)]; ok {
		return err
	}
	s.sent = append(s.sent, Sent{Src: src, Dest: dest, Body: body})
	return nil
}

// SetError causes subsequent sends to fail with err.
func (s *Sender) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = err
}

// SetTypeError causes subsequent sends of bodies with the given message type
// to fail with err. Other sends succeed.
func (s *Sender) SetTypeError(typ string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.typeErrs == nil {
		s.typeErrs = make(map[string]error)
	}
	s.typeErrs[typ] = err
}

// Sent returns the recorded messages in send order.
func (s *Sender) Sent() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Sent(nil), s.sent...)
}

// Take returns the recorded messages and clears the record.
func (s *Sender) Take() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()

	sent := s.sent
	s.sent = nil
	return sent
}

var _ protocol.Sender = &Sender{}

func bodyType(body interface{}) string {
	b, err := protocol.Encode(body)
	if err != nil {
		return ""
	}
	var h protocol.Header
	if err := protocol.Decode(b, &h); err != nil {
		return ""
	}
	return h.Type
}

// Frame parses a record with the given envelope and JSON body, failing the
// test if it is malformed.
func Frame(t testing.TB, src, dest, body string) *protocol.Frame {
	t.Helper()

	f, err := protocol.ParseFrame(
		[]byte(fmt.Sprintf(`{"src":%q,"dest":%q,"body":%s}`, src, dest, body)),
	)
	require.NoError(t, err)
	return f
}
