package registry

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"

	"github.com/concordhq/concord/internal/model"
)

// conceptServiceDesc wires the three fixed methods (§4.2.1) to a
// grpc.Server without a generated stub: each handler decodes the raw
// request bytes via the rawJSONCodec (registered by content-subtype in
// codec.go) and re-encodes the same way, so client and server agree on
// wire format without a shared .proto.
var conceptServiceDesc = grpc.ServiceDesc{
	ServiceName: grpcServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Invoke", Handler: invokeMethodHandler},
		{MethodName: "Query", Handler: queryMethodHandler},
		{MethodName: "Health", Handler: healthMethodHandler},
	},
}

func invokeMethodHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	var reqBytes []byte
	if err := dec(&reqBytes); err != nil {
		return nil, err
	}
	return srv.(*GRPCServer).invoke(ctx, reqBytes)
}

func queryMethodHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	var reqBytes []byte
	if err := dec(&reqBytes); err != nil {
		return nil, err
	}
	return srv.(*GRPCServer).query(ctx, reqBytes)
}

func healthMethodHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	var reqBytes []byte
	if err := dec(&reqBytes); err != nil {
		return nil, err
	}
	return srv.(*GRPCServer).health(ctx, reqBytes)
}

func marshalEnvelope(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalEnvelope(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func encodeRows(rows []Row) ([]map[string]json.RawMessage, error) {
	out := make([]map[string]json.RawMessage, len(rows))
	for i, row := range rows {
		m, err := encodeFields(model.Fields(row))
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}
