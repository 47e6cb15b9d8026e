// Package actionlog implements the append-only action log (§4.1): the
// provenance record of every invocation and completion, the sync-firing
// edge index used by the firing guard, and the durable/in-memory
// backends that satisfy it.
package actionlog

import (
	"context"
	"errors"

	"github.com/concordhq/concord/internal/model"
)

// ErrUnavailable is returned by a durable Log implementation when its
// backend cannot be reached; the engine treats this as fatal for the
// invocation in flight (§4.1, "Failure semantics").
var ErrUnavailable = errors.New("actionlog: backend unavailable")

// TriggerEdge records that a sync fired in response to a triggering
// completion, producing a specific invocation (§4.1(b), provenance
// edges). Populated by RecordFiringEdge once the invocation that a
// firing produced actually exists — never before, since the invocation
// ID doesn't exist until the then emitter runs.
type TriggerEdge struct {
	SyncName     string
	InvocationID string
}

// Log is the action log contract. Implementations must guarantee that
// CompletionsForFlow returns records in append order and that
// RecordSyncFiring/HasFired agree on the sorted matched-id key
// regardless of call ordering (§4.1 invariants).
type Log interface {
	Append(ctx context.Context, completion model.Completion, parent string) (model.Record, error)
	AppendInvocation(ctx context.Context, inv model.Invocation, parent string) (model.Record, error)

	CompletionsForFlow(ctx context.Context, flow string) ([]model.Record, error)
	RecordsForFlow(ctx context.Context, flow string) ([]model.Record, error)

	RecordSyncFiring(ctx context.Context, matchedIDs []string, syncName string) error
	HasFired(ctx context.Context, matchedIDs []string, syncName string) (bool, error)

	// RecordFiringEdge records the provenance edge from triggerID to the
	// invocation syncName produced, once that invocation has an ID
	// (§4.1(b)). Called after AppendInvocation succeeds, never before.
	RecordFiringEdge(ctx context.Context, triggerID, syncName, invocationID string) error
	// EdgesForTrigger returns the firing edges recorded against
	// triggerID, in the order they were recorded.
	EdgesForTrigger(ctx context.Context, triggerID string) ([]TriggerEdge, error)
}
