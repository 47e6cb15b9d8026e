// Package engine implements the Engine Façade (§4.8, §4.9): the single
// entry point that threads a completion through the firing guard, the
// matcher, the where evaluator, and the then emitter, and that owns the
// degraded-sync state machine and hot-reload.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/concordhq/concord/internal/actionlog"
	"github.com/concordhq/concord/internal/logging"
	"github.com/concordhq/concord/internal/matcher"
	"github.com/concordhq/concord/internal/metrics"
	"github.com/concordhq/concord/internal/model"
	"github.com/concordhq/concord/internal/observability"
	"github.com/concordhq/concord/internal/registry"
	"github.com/concordhq/concord/internal/syncindex"
	"github.com/concordhq/concord/internal/thenemit"
	"github.com/concordhq/concord/internal/whereeval"
)

// Engine is the concept-synchronization runtime façade. One Engine
// serves every concept/flow in a process; state it owns (index, degraded
// set, firing guard via the log) is safe for concurrent OnCompletion
// calls (§5).
type Engine struct {
	log      actionlog.Log
	index    *syncindex.Store
	registry *registry.Registry

	mu       sync.RWMutex
	degraded map[string]struct{}
}

// New wires an Engine around log and reg, with an empty sync index.
// Call ReloadSyncs to install syncs. The engine subscribes to reg's
// availability notifications to drive the degraded-sync state machine.
func New(log actionlog.Log, reg *registry.Registry) *Engine {
	e := &Engine{
		log:      log,
		index:    syncindex.NewStore(syncindex.Build(nil)),
		registry: reg,
		degraded: make(map[string]struct{}),
	}
	reg.OnAvailabilityChange(func(uri string, available bool) {
		metrics.SetConceptAvailable(uri, available)
		e.recomputeDegraded()
	})
	return e
}

// ReloadSyncs atomically replaces the active sync index, clears the
// degraded set, and re-evaluates degradation against the current
// registry state (§4.9). In-flight OnCompletion calls keep using the
// index reference they captured at entry.
func (e *Engine) ReloadSyncs(syncs []*model.CompiledSync) {
	e.index.Swap(syncindex.Build(syncs))
	e.recomputeDegraded()
}

// OnCompletion is the engine's sole entry point (§4.8). It appends
// completion to the log, finds every candidate sync, matches, applies
// the firing guard, evaluates where/then for newly-firing bindings, and
// returns every invocation produced.
func (e *Engine) OnCompletion(ctx context.Context, completion model.Completion, parent string) ([]model.Invocation, error) {
	ctx, span := observability.StartSpan(ctx, "engine.OnCompletion",
		observability.AttrFlow.String(completion.Flow),
		observability.AttrConcept.String(completion.Concept),
		observability.AttrAction.String(completion.Action),
	)
	defer span.End()

	rec, err := e.log.Append(ctx, completion, parent)
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, fmt.Errorf("engine: append completion: %w", err)
	}

	idx := e.index.Current()
	candidates := idx.Lookup(completion.Concept, completion.Action)
	if len(candidates) == 0 {
		observability.SetSpanOK(span)
		return nil, nil
	}

	history, err := e.log.CompletionsForFlow(ctx, completion.Flow)
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, fmt.Errorf("engine: load flow history: %w", err)
	}

	var produced []model.Invocation
	for _, sync := range candidates {
		invs, err := e.fireSync(ctx, sync, history, rec)
		if err != nil {
			observability.SetSpanError(span, err)
			return produced, err
		}
		produced = append(produced, invs...)
	}

	observability.SetSpanOK(span)
	return produced, nil
}

func (e *Engine) fireSync(ctx context.Context, sync *model.CompiledSync, history []model.Record, trigger model.Record) ([]model.Invocation, error) {
	if e.isDegraded(sync.Name) {
		metrics.RecordDegradedSkip(sync.Name)
		logging.Op().Warn("skipping degraded sync", "sync", sync.Name)
		return nil, nil
	}

	start := time.Now()
	bindings := matcher.Match(sync.When, history, trigger)
	metrics.ObserveMatcherDuration(sync.Name, time.Since(start))

	var toFire []model.Binding
	for _, b := range bindings {
		fired, err := e.log.HasFired(ctx, b.MatchedIDs(), sync.Name)
		if err != nil {
			return nil, fmt.Errorf("engine: check firing guard for sync %s: %w", sync.Name, err)
		}
		if fired {
			continue
		}
		// Record before evaluating where/then: the at-most-once
		// guarantee holds even if where evaluation suspends (§4.8).
		if err := e.log.RecordSyncFiring(ctx, b.MatchedIDs(), sync.Name); err != nil {
			return nil, fmt.Errorf("engine: record firing for sync %s: %w", sync.Name, err)
		}
		metrics.RecordFiring(sync.Name)
		toFire = append(toFire, b)
	}
	if len(toFire) == 0 {
		return nil, nil
	}

	extended := whereeval.Evaluate(ctx, sync.Where, toFire, e.registry)
	emitted := thenemit.Emit(extended, sync.Then, trigger.Flow, trigger.ID, sync.Name)

	produced := make([]model.Invocation, 0, len(emitted))
	for _, inv := range emitted {
		fireStart := time.Now()
		if _, err := e.log.AppendInvocation(ctx, inv, trigger.ID); err != nil {
			logging.FiringAudit().Log(&logging.FiringLog{
				Flow:       trigger.Flow,
				TriggerID:  trigger.ID,
				SyncName:   sync.Name,
				Concept:    inv.Concept,
				Action:     inv.Action,
				DurationMs: time.Since(fireStart).Milliseconds(),
				Error:      err.Error(),
			})
			return produced, fmt.Errorf("engine: append invocation for sync %s: %w", sync.Name, err)
		}
		// The edge is only recordable once AppendInvocation has assigned
		// inv.ID a durable home; recording it earlier would point at an
		// invocation that might never have been persisted (§4.1(b)).
		if err := e.log.RecordFiringEdge(ctx, trigger.ID, sync.Name, inv.ID); err != nil {
			return produced, fmt.Errorf("engine: record firing edge for sync %s: %w", sync.Name, err)
		}
		logging.FiringAudit().Log(&logging.FiringLog{
			Flow:         trigger.Flow,
			TriggerID:    trigger.ID,
			SyncName:     sync.Name,
			InvocationID: inv.ID,
			Concept:      inv.Concept,
			Action:       inv.Action,
			DurationMs:   time.Since(fireStart).Milliseconds(),
		})
		metrics.RecordInvocationEmitted(inv.Concept, inv.Action)
		produced = append(produced, inv)
	}
	return produced, nil
}

func (e *Engine) isDegraded(syncName string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, degraded := e.degraded[syncName]
	return degraded
}

// recomputeDegraded re-evaluates every sync's degraded/active state
// against the registry's current availability (§4.8, "state machines").
// A sync is degraded when a referenced concept is registered and
// unavailable; a concept with no registry handle does not degrade it.
func (e *Engine) recomputeDegraded() {
	idx := e.index.Current()
	next := make(map[string]struct{})
	for _, sync := range idx.All() {
		for concept := range sync.ReferencedConcepts {
			handle, ok := e.registry.Handle(concept)
			if ok && !handle.Available() {
				next[sync.Name] = struct{}{}
				break
			}
		}
	}

	e.mu.Lock()
	e.degraded = next
	e.mu.Unlock()

	metrics.SetDegradedSyncs(len(next))
}

// DegradedSyncs returns the names of syncs currently in the degraded
// set, for CLI inspection.
func (e *Engine) DegradedSyncs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.degraded))
	for name := range e.degraded {
		out = append(out, name)
	}
	return out
}

// CompiledSyncs returns every sync in the currently active index, for
// CLI inspection (list-syncs).
func (e *Engine) CompiledSyncs() []*model.CompiledSync {
	return e.index.Current().All()
}
