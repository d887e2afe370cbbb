package store

import "github.com/vmihailenco/msgpack/v5"

// Codec abstracts the serialization format used for stored payloads, so a
// backend can be reconfigured without touching its implementation. The
// default codec is MessagePack.
type Codec interface {
	// Marshal encodes the given value into a byte slice.
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes the given byte slice into the provided value.
	Unmarshal(data []byte, v any) error
}

// DefaultCodec is MessagePack.
var DefaultCodec Codec = msgpackCodec{}

type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec) Unmarshal(b []byte, v any) error {
	return msgpack.Unmarshal(b, v)
}
