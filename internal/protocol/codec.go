package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var ErrEmptyFrame = errors.New("protocol: empty binary frame")

// Encode marshals a text envelope ready for a WebSocket text message
func Encode(msgType string, data interface{}) ([]byte, error) {
	b, err := json.Marshal(Envelope{T: msgType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msgType, err)
	}
	return b, nil
}

// Decode unmarshals an incoming text envelope, leaving the payload raw
func Decode(raw []byte) (InEnvelope, error) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return InEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// EncodeFrame marshals a binary frame: one tag byte, then the msgpack body
func EncodeFrame(tag byte, v interface{}) ([]byte, error) {
	body, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame 0x%02x: %w", tag, err)
	}
	buf := make([]byte, len(body)+1)
	buf[0] = tag
	copy(buf[1:], body)
	return buf, nil
}

// SplitFrame separates the tag byte from the msgpack body
func SplitFrame(raw []byte) (byte, []byte, error) {
	if len(raw) == 0 {
		return 0, nil, ErrEmptyFrame
	}
	return raw[0], raw[1:], nil
}

// DecodeFrame unmarshals a frame body into v after SplitFrame
func DecodeFrame(body []byte, v interface{}) error {
	if err := msgpack.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode frame body: %w", err)
	}
	return nil
}
