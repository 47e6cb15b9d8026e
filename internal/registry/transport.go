// Package registry implements the Concept Registry (§4.2): the mapping
// from a concept URI to a deployment handle, availability tracking, and
// the concrete Transport implementations (gRPC, in-process) that carry
// invoke/query/health calls to a concept.
package registry

import (
	"context"
	"time"

	"github.com/concordhq/concord/internal/model"
)

// QueryMode selects how a transport routes query requests (§3, "Concept
// Deployment Handle").
type QueryMode string

const (
	QueryModeGraphQL QueryMode = "graphql"
	QueryModeLite    QueryMode = "lite"
)

// QueryRequest is the where-evaluator's query contract against a
// concept (§6, "Concept transport").
type QueryRequest struct {
	Relation string
	Args     map[string]model.Value
}

// Row is one result row from a concept query.
type Row map[string]model.Value

// Health is the result of probing a transport.
type Health struct {
	Available bool
	Latency   *time.Duration
}

// Transport abstracts how the engine reaches a concept, so the registry
// (and the engine) can treat a remote gRPC-hosted concept and an
// in-process one identically (§6, "Concept transport").
type Transport interface {
	Invoke(ctx context.Context, inv model.Invocation) (model.Completion, error)
	Query(ctx context.Context, req QueryRequest) ([]Row, error)
	Health(ctx context.Context) Health
	QueryMode() QueryMode
}
