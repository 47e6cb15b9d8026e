package actionlog

import (
	"context"
	"sync"
	"time"

	"github.com/concordhq/concord/internal/model"
)

// MemoryLog is the in-memory action log. It never fails (§4.1) and is
// the default backend for a single-process engine or for tests.
type MemoryLog struct {
	mu sync.RWMutex

	byFlow map[string][]model.Record

	// firingsByKey indexes sync-firing edges by sorted matched-id key ->
	// set of sync names that have fired for that key (§3, "Sync Edge").
	firingsByKey map[string]map[string]struct{}

	// firingsByTrigger indexes, for provenance walks, the triggering
	// completion id -> the (syncName, invocationID) pairs it produced.
	firingsByTrigger map[string][]TriggerEdge

	now func() time.Time
}

// NewMemoryLog creates an empty in-memory log. clock defaults to
// time.Now; tests may override it for deterministic timestamps.
func NewMemoryLog(clock func() time.Time) *MemoryLog {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryLog{
		byFlow:           make(map[string][]model.Record),
		firingsByKey:     make(map[string]map[string]struct{}),
		firingsByTrigger: make(map[string][]TriggerEdge),
		now:              clock,
	}
}

func (l *MemoryLog) Append(ctx context.Context, c model.Completion, parent string) (model.Record, error) {
	rec := c.ToRecord(l.now(), parent)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byFlow[c.Flow] = append(l.byFlow[c.Flow], rec)
	return rec, nil
}

func (l *MemoryLog) AppendInvocation(ctx context.Context, inv model.Invocation, parent string) (model.Record, error) {
	rec := inv.ToRecord(l.now())
	if parent != "" {
		rec.Parent = parent
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byFlow[inv.Flow] = append(l.byFlow[inv.Flow], rec)
	return rec, nil
}

func (l *MemoryLog) CompletionsForFlow(ctx context.Context, flow string) ([]model.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Record, 0, len(l.byFlow[flow]))
	for _, r := range l.byFlow[flow] {
		if r.Kind == model.KindCompletion {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *MemoryLog) RecordsForFlow(ctx context.Context, flow string) ([]model.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Record, len(l.byFlow[flow]))
	copy(out, l.byFlow[flow])
	return out, nil
}

func (l *MemoryLog) RecordSyncFiring(ctx context.Context, matchedIDs []string, syncName string) error {
	key := firingKey(matchedIDs)
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.firingsByKey[key]
	if !ok {
		set = make(map[string]struct{})
		l.firingsByKey[key] = set
	}
	set[syncName] = struct{}{}
	return nil
}

func (l *MemoryLog) HasFired(ctx context.Context, matchedIDs []string, syncName string) (bool, error) {
	key := firingKey(matchedIDs)
	l.mu.RLock()
	defer l.mu.RUnlock()
	set, ok := l.firingsByKey[key]
	if !ok {
		return false, nil
	}
	_, fired := set[syncName]
	return fired, nil
}

// RecordFiringEdge records the provenance edge from triggerID to the
// invocation syncName produced. Called after the invocation has been
// appended to the log, once its ID exists (§4.1(b)).
func (l *MemoryLog) RecordFiringEdge(ctx context.Context, triggerID, syncName, invocationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.firingsByTrigger[triggerID] = append(l.firingsByTrigger[triggerID], TriggerEdge{
		SyncName:     syncName,
		InvocationID: invocationID,
	})
	return nil
}

// EdgesForTrigger returns the sync-firing edges recorded against a
// triggering completion id, in the order they were recorded, for
// provenance/CLI inspection.
func (l *MemoryLog) EdgesForTrigger(ctx context.Context, triggerID string) ([]TriggerEdge, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]TriggerEdge, len(l.firingsByTrigger[triggerID]))
	copy(out, l.firingsByTrigger[triggerID])
	return out, nil
}

func firingKey(ids []string) string {
	sorted := model.SortedIDs(ids)
	key := ""
	for i, id := range sorted {
		if i > 0 {
			key += "\x1f"
		}
		key += id
	}
	return key
}
