package registry

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is registered with grpc's encoding package so the registry's
// gRPC transport can invoke arbitrary concept methods without a
// generated protobuf stub per concept (§4.2.1, "no per-concept
// generated stubs"). Every concept speaks the same wire contract:
// JSON-encoded request/response envelopes carried as raw bytes.
const CodecName = "concord-raw-json"

func init() {
	encoding.RegisterCodec(rawJSONCodec{})
}

// rawJSONCodec implements grpc/encoding.Codec. It requires messages to
// already be []byte (the caller marshals/unmarshals JSON itself via
// Envelope), so it never reflects over arbitrary Go structs the way the
// default proto codec does.
type rawJSONCodec struct{}

func (rawJSONCodec) Marshal(v interface{}) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("registry: rawJSONCodec.Marshal: expected []byte, got %T", v)
	}
	return b, nil
}

func (rawJSONCodec) Unmarshal(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("registry: rawJSONCodec.Unmarshal: expected *[]byte, got %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func (rawJSONCodec) Name() string {
	return CodecName
}
