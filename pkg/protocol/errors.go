package protocol

import "errors"

var (
	// ErrProtocol indicates a malformed record or an unrecognised message
	// type. The record is skipped without a reply.
	ErrProtocol = errors.New("protocol error")

	// ErrMissingField indicates a message body is missing a field its type
	// requires. The record is dropped and no reply is sent.
	ErrMissingField = errors.New("missing field")
)
