package protocol

import (
	"fmt"
	"reflect"

	"github.com/ugorji/go/codec"
)

var jsonHandle = newJSONHandle()

func newJSONHandle() *codec.JsonHandle {
	var h codec.JsonHandle
	// Ignore fields added by the harness that we don't use.
	h.ErrorIfNoField = false
	// Decode arbitrary objects (such as echo payloads) with string keys so
	// they re-encode as JSON objects.
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return &h
}

// Encode encodes v as a single JSON record.
func Encode(v interface{}) ([]byte, error) {
	var b []byte
	if err := codec.NewEncoderBytes(&b, jsonHandle).Encode(v); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return b, nil
}

// Decode decodes the JSON record b into v.
func Decode(b []byte, v interface{}) error {
	if err := codec.NewDecoderBytes(b, jsonHandle).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
