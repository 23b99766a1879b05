// Package dataplane is the opaque client boundary to the per-node proxy
// dataplane (Xray HandlerService/StatsService over gRPC) and the node's
// local WireGuard interface (accept as an opaque peer CRUD API). Neither
// service's wire schema is specified beyond the operation names in §6, so
// requests and responses here are plain JSON-tagged structs carried over a
// real *grpc.ClientConn via a small codec, rather than generated protobuf
// stubs this module has no .proto source to generate.
package dataplane

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

// jsonCodec lets callers Invoke gRPC methods with plain Go structs instead
// of generated protobuf messages, by marshaling request/response bodies as
// JSON and sending them as the gRPC message body under a "+json" content
// subtype. Registered once at package init.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("dataplane: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("dataplane: unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
