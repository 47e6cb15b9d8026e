package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/concordhq/concord/internal/model"
)

// GRPCTransport carries Invoke/Query/Health calls to a concept deployed
// behind a gRPC endpoint, using the shared rawJSONCodec instead of a
// per-concept generated stub (§4.2.1).
type GRPCTransport struct {
	target    string
	conn      *grpc.ClientConn
	queryMode QueryMode
}

// DialGRPC opens (or reuses, via grpc's own connection management) a
// client connection to target and wraps it as a Transport.
func DialGRPC(ctx context.Context, target string, queryMode QueryMode, dialOpts ...grpc.DialOption) (*GRPCTransport, error) {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, dialOpts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("registry: dial %s: %w", target, err)
	}
	return &GRPCTransport{target: target, conn: conn, queryMode: queryMode}, nil
}

func (t *GRPCTransport) QueryMode() QueryMode { return t.queryMode }

func (t *GRPCTransport) Close() error { return t.conn.Close() }

func (t *GRPCTransport) Invoke(ctx context.Context, inv model.Invocation) (model.Completion, error) {
	input, err := encodeFields(inv.Input)
	if err != nil {
		return model.Completion{}, fmt.Errorf("registry: encode invocation input: %w", err)
	}

	reqEnv := invokeEnvelope{
		Concept: inv.Concept,
		Action:  inv.Action,
		Input:   input,
		Flow:    inv.Flow,
	}
	reqBytes, err := json.Marshal(reqEnv)
	if err != nil {
		return model.Completion{}, fmt.Errorf("registry: marshal invoke envelope: %w", err)
	}

	var respBytes []byte
	if err := t.conn.Invoke(ctx, MethodInvoke, reqBytes, &respBytes); err != nil {
		return model.Completion{}, fmt.Errorf("registry: invoke %s/%s: %w", inv.Concept, inv.Action, err)
	}

	var respEnv invokeEnvelope
	if err := json.Unmarshal(respBytes, &respEnv); err != nil {
		return model.Completion{}, fmt.Errorf("registry: unmarshal invoke response: %w", err)
	}
	if respEnv.Error != "" {
		return model.Completion{}, fmt.Errorf("registry: concept %s returned error: %s", inv.Concept, respEnv.Error)
	}

	output, err := decodeFields(respEnv.Output)
	if err != nil {
		return model.Completion{}, fmt.Errorf("registry: decode invoke output: %w", err)
	}

	return model.Completion{
		ID:      inv.ID,
		Concept: inv.Concept,
		Action:  inv.Action,
		Input:   inv.Input,
		Variant: respEnv.Variant,
		Output:  output,
		Flow:    inv.Flow,
	}, nil
}

func (t *GRPCTransport) Query(ctx context.Context, req QueryRequest) ([]Row, error) {
	args, err := encodeFields(req.Args)
	if err != nil {
		return nil, fmt.Errorf("registry: encode query args: %w", err)
	}

	reqEnv := queryEnvelope{Relation: req.Relation, Args: args}
	reqBytes, err := json.Marshal(reqEnv)
	if err != nil {
		return nil, fmt.Errorf("registry: marshal query envelope: %w", err)
	}

	var respBytes []byte
	if err := t.conn.Invoke(ctx, MethodQuery, reqBytes, &respBytes); err != nil {
		return nil, fmt.Errorf("registry: query %s: %w", req.Relation, err)
	}

	var respEnv queryEnvelope
	if err := json.Unmarshal(respBytes, &respEnv); err != nil {
		return nil, fmt.Errorf("registry: unmarshal query response: %w", err)
	}
	if respEnv.Error != "" {
		return nil, fmt.Errorf("registry: query %s returned error: %s", req.Relation, respEnv.Error)
	}

	rows := make([]Row, 0, len(respEnv.Rows))
	for _, raw := range respEnv.Rows {
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, fmt.Errorf("registry: decode query row: %w", err)
		}
		rows = append(rows, Row(fields))
	}
	return rows, nil
}

func (t *GRPCTransport) Health(ctx context.Context) Health {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var respBytes []byte
	err := t.conn.Invoke(ctx, MethodHealth, []byte("{}"), &respBytes)
	latency := time.Since(start)
	if err != nil {
		if status.Code(err) == codes.Unavailable {
			return Health{Available: false}
		}
		return Health{Available: false}
	}

	var respEnv healthEnvelope
	if jsonErr := json.Unmarshal(respBytes, &respEnv); jsonErr != nil {
		return Health{Available: false}
	}
	return Health{Available: respEnv.Available, Latency: &latency}
}
