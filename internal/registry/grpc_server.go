package registry

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/concordhq/concord/internal/logging"
	"github.com/concordhq/concord/internal/model"
)

// GRPCServer exposes a set of in-process ConceptHandlers over the same
// wire contract GRPCTransport dials against (§4.2.1): no per-concept
// generated stub, one raw-JSON-codec service with Invoke/Query/Health
// methods, routed by the Concept field inside the envelope. This is
// what lets one engine's in-process concepts be reached by another
// engine's GRPCTransport.
type GRPCServer struct {
	server   *grpc.Server
	handlers map[string]ConceptHandler
}

// NewGRPCServer creates a server with no registered concepts. Call
// RegisterConcept before Start to add a handler.
func NewGRPCServer() *GRPCServer {
	s := &GRPCServer{handlers: make(map[string]ConceptHandler)}
	s.server = grpc.NewServer()
	s.server.RegisterService(&conceptServiceDesc, s)
	return s
}

// RegisterConcept routes inbound calls naming uri to handler.
func (s *GRPCServer) RegisterConcept(uri string, handler ConceptHandler) {
	s.handlers[uri] = handler
}

// Start listens on addr and serves in a background goroutine.
func (s *GRPCServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("registry: listen %s: %w", addr, err)
	}

	logging.Op().Info("concept grpc server started", "addr", addr)
	go func() {
		if err := s.server.Serve(lis); err != nil {
			logging.Op().Error("concept grpc server stopped", "error", err)
		}
	}()
	return nil
}

// Stop gracefully drains in-flight calls and shuts the server down.
func (s *GRPCServer) Stop() {
	s.server.GracefulStop()
}

func (s *GRPCServer) handlerFor(uri string) (ConceptHandler, error) {
	h, ok := s.handlers[uri]
	if !ok {
		return nil, fmt.Errorf("registry: no local handler registered for concept %q", uri)
	}
	return h, nil
}

func (s *GRPCServer) invoke(ctx context.Context, reqBytes []byte) ([]byte, error) {
	var env invokeEnvelope
	if err := unmarshalEnvelope(reqBytes, &env); err != nil {
		return nil, err
	}

	handler, err := s.handlerFor(env.Concept)
	if err != nil {
		return marshalEnvelope(invokeEnvelope{Error: err.Error()})
	}

	input, err := decodeFields(env.Input)
	if err != nil {
		return marshalEnvelope(invokeEnvelope{Error: err.Error()})
	}

	completion, err := handler.Invoke(ctx, model.Invocation{
		Concept: env.Concept,
		Action:  env.Action,
		Input:   input,
		Flow:    env.Flow,
	})
	if err != nil {
		return marshalEnvelope(invokeEnvelope{Error: err.Error()})
	}

	output, err := encodeFields(completion.Output)
	if err != nil {
		return marshalEnvelope(invokeEnvelope{Error: err.Error()})
	}
	return marshalEnvelope(invokeEnvelope{
		Concept: completion.Concept,
		Action:  completion.Action,
		Variant: completion.Variant,
		Output:  output,
	})
}

func (s *GRPCServer) query(ctx context.Context, reqBytes []byte) ([]byte, error) {
	var env queryEnvelope
	if err := unmarshalEnvelope(reqBytes, &env); err != nil {
		return nil, err
	}

	// The relation's owning concept is not carried on the wire today;
	// queries are routed to whichever single handler is registered.
	// Deployments with more than one local concept must disambiguate by
	// giving each its own GRPCServer/port.
	if len(s.handlers) != 1 {
		return marshalEnvelope(queryEnvelope{Error: "registry: grpc server query routing requires exactly one registered concept"})
	}
	var handler ConceptHandler
	for _, h := range s.handlers {
		handler = h
	}

	args, err := decodeFields(env.Args)
	if err != nil {
		return marshalEnvelope(queryEnvelope{Error: err.Error()})
	}

	rows, err := handler.Query(ctx, QueryRequest{Relation: env.Relation, Args: args})
	if err != nil {
		return marshalEnvelope(queryEnvelope{Error: err.Error()})
	}

	outRows, err := encodeRows(rows)
	if err != nil {
		return marshalEnvelope(queryEnvelope{Error: err.Error()})
	}
	return marshalEnvelope(queryEnvelope{Rows: outRows})
}

func (s *GRPCServer) health(ctx context.Context, reqBytes []byte) ([]byte, error) {
	available := len(s.handlers) > 0
	for _, h := range s.handlers {
		if !h.Healthy(ctx) {
			available = false
			break
		}
	}
	return marshalEnvelope(healthEnvelope{Available: available})
}
