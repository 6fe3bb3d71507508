package protocol

import (
	"bytes"
	"fmt"
)

// Frame is a received record whose envelope and header have been decoded.
// The typed body is decoded on demand with DecodeBody once the router knows
// which body type to expect.
type Frame struct {
	Src    string
	Dest   string
	Header Header

	raw []byte
}

// ParseFrame decodes the envelope of a single record.
//
// Returns an error wrapping ErrProtocol if the record is malformed or is
// missing the envelope fields.
func ParseFrame(line []byte) (*Frame, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrProtocol)
	}

	var m Message[Header]
	if err := Decode(line, &m); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProtocol, err)
	}
	if m.Src == "" {
		return nil, fmt.Errorf("%w: missing src", ErrProtocol)
	}
	if m.Dest == "" {
		return nil, fmt.Errorf("%w: missing dest", ErrProtocol)
	}
	if m.Body.Type == "" {
		return nil, fmt.Errorf("%w: missing body type", ErrProtocol)
	}

	raw := make([]byte, len(line))
	copy(raw, line)
	return &Frame{
		Src:    m.Src,
		Dest:   m.Dest,
		Header: m.Body,
		raw:    raw,
	}, nil
}

// DecodeBody decodes the frames body as B.
func DecodeBody[B any](f *Frame) (B, error) {
	var m Message[B]
	if err := Decode(f.raw, &m); err != nil {
		var zero B
		return zero, fmt.Errorf("%w: %s: %s", ErrProtocol, f.Header.Type, err)
	}
	return m.Body, nil
}

// Type returns the body type.
func (f *Frame) Type() string {
	return f.Header.Type
}

// MsgID returns the message ID of the frame, or 0 if unset.
func (f *Frame) MsgID() uint64 {
	return f.Header.MsgID
}

// IsReply returns whether the frame is a reply to an earlier message.
func (f *Frame) IsReply() bool {
	return f.Header.InReplyTo != 0
}
