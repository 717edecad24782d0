package pagerpc

import (
	"encoding/json"
	"fmt"

	grpcEncoding "google.golang.org/grpc/encoding"
	_ "google.golang.org/grpc/encoding/proto" // ensure default proto codec is registered first
	"google.golang.org/protobuf/proto"
)

func init() {
	// Replace the default proto codec with a wrapper that JSON-encodes Pages
	// messages and delegates protobuf messages (health checks) to proto.
	grpcEncoding.RegisterCodec(pagesCodec{})
}

type pagesCodec struct{}

func (pagesCodec) Name() string { return "proto" }

func (pagesCodec) Marshal(v any) ([]byte, error) {
	if _, ok := v.(pagesMsg); ok {
		return json.Marshal(v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("pagerpc codec: unsupported message type %T", v)
}

func (pagesCodec) Unmarshal(data []byte, v any) error {
	if _, ok := v.(pagesMsg); ok {
		return json.Unmarshal(data, v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("pagerpc codec: unsupported message type %T", v)
}
