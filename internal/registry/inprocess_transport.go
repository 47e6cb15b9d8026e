package registry

import (
	"context"
	"fmt"

	"github.com/concordhq/concord/internal/model"
)

// ConceptHandler is implemented by a concept running in the same process
// as the engine (§4.2.1, "in-process transport"). It is the same
// invoke/query/health contract as GRPCTransport, minus the wire framing.
type ConceptHandler interface {
	Invoke(ctx context.Context, inv model.Invocation) (model.Completion, error)
	Query(ctx context.Context, req QueryRequest) ([]Row, error)
	Healthy(ctx context.Context) bool
}

// InProcessTransport adapts a ConceptHandler to Transport, for concepts
// compiled into the same binary as the engine rather than reached over
// the network.
type InProcessTransport struct {
	handler   ConceptHandler
	queryMode QueryMode
}

// NewInProcessTransport wraps handler.
func NewInProcessTransport(handler ConceptHandler, queryMode QueryMode) *InProcessTransport {
	return &InProcessTransport{handler: handler, queryMode: queryMode}
}

func (t *InProcessTransport) QueryMode() QueryMode { return t.queryMode }

func (t *InProcessTransport) Invoke(ctx context.Context, inv model.Invocation) (model.Completion, error) {
	if t.handler == nil {
		return model.Completion{}, fmt.Errorf("registry: in-process transport for %s has no handler", inv.Concept)
	}
	return t.handler.Invoke(ctx, inv)
}

func (t *InProcessTransport) Query(ctx context.Context, req QueryRequest) ([]Row, error) {
	if t.handler == nil {
		return nil, fmt.Errorf("registry: in-process transport has no handler for query %s", req.Relation)
	}
	return t.handler.Query(ctx, req)
}

func (t *InProcessTransport) Health(ctx context.Context) Health {
	if t.handler == nil {
		return Health{Available: false}
	}
	return Health{Available: t.handler.Healthy(ctx)}
}
